package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAudioKey(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
	}{
		{"note.MP3", ".mp3"},
		{"clip.webm", ".webm"},
		{"recording", ".webm"},
		{"weird.extension-too-long", ".webm"},
	}
	for _, tt := range tests {
		key := AudioKey(tt.filename)
		assert.True(t, strings.HasPrefix(key, "audio/"), key)
		assert.True(t, strings.HasSuffix(key, tt.ext), key)
	}
	assert.NotEqual(t, AudioKey("a.wav"), AudioKey("a.wav"))
}

func TestObjectURL(t *testing.T) {
	m := &MinIOClient{bucket: "audio-bucket", endpoint: "minio:9000"}
	assert.Equal(t, "http://minio:9000/audio-bucket/audio/x.wav", m.objectURL("audio/x.wav"))
	m.secure = true
	assert.Equal(t, "https://minio:9000/audio-bucket/audio/x.wav", m.objectURL("audio/x.wav"))
}
