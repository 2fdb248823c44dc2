package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"medibridge/medibridge/config"
	"medibridge/medibridge/controllers"
	"medibridge/medibridge/services/pipeline"
	"medibridge/medibridge/services/ratelimit"
	"medibridge/medibridge/services/realtime"
	"medibridge/medibridge/services/translation"
	"medibridge/medibridge/sources/psql/dao"
	"medibridge/medibridge/sources/psql/models"
	"medibridge/medibridge/sources/psql/psqltest"
	"medibridge/medibridge/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryAudio struct {
	mu      sync.Mutex
	uploads map[string][]byte
}

func (m *memoryAudio) UploadAudio(_ context.Context, filename, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := "http://audio.test/audio/" + filename
	m.uploads[url] = data
	return url, nil
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, string, []byte) (string, error) {
	return "", fmt.Errorf("whisper unavailable")
}

type gormPinger struct{ db *gorm.DB }

func (p gormPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type testServer struct {
	srv      *httptest.Server
	pool     *pipeline.WorkerPool
	messages *dao.MessageDAO
	sessions *dao.ConsultationDAO
	audio    *memoryAudio
}

type serverOption func(*config.Config, *translation.Services)

func newServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.JWTSecret = "routes-secret"
	ai := translation.NewServices(cfg)
	for _, opt := range opts {
		opt(&cfg, &ai)
	}

	db := psqltest.NewDB(t)
	users := dao.NewUserDAO(db)
	sessions := dao.NewConsultationDAO(db)
	messages := dao.NewMessageDAO(db)
	hub := realtime.NewHub()
	pool := pipeline.NewWorkerPool(2, 100)
	p := pipeline.New(cfg, sessions, messages, hub, ai.Translator, pool, ratelimit.PerMinute(cfg.RateLimitPerMinute))
	audio := &memoryAudio{uploads: map[string][]byte{}}

	router := NewRouter(cfg, Handlers{
		Auth:          controllers.NewAuthController(users, cfg),
		Chat:          controllers.NewChatController(p, sessions, messages, audio, ai.Transcriber),
		Consultations: controllers.NewConsultationController(sessions, messages, hub, ai.Summarizer, pool),
		AI:            controllers.NewAIController(ai.Translator, cfg.TranslationTimeout),
		Health:        controllers.NewHealthController(gormPinger{db}),
		Realtime:      realtime.NewHandler(cfg, hub, sessions, p),
	})
	ts := &testServer{
		srv:      httptest.NewServer(router),
		pool:     pool,
		messages: messages,
		sessions: sessions,
		audio:    audio,
	}
	t.Cleanup(func() {
		ts.srv.Close()
		pool.Shutdown(context.Background())
	})
	return ts
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (s *testServer) signup(t *testing.T, email string, role models.Role) types.TokenResponse {
	t.Helper()
	resp, body := s.do(t, "POST", "/auth/signup", "", types.SignupRequest{
		Email: email, Password: "secret123", FullName: "Test " + string(role), Role: role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var tok types.TokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	return tok
}

// openSession has the patient request and the doctor accept, with the given languages.
func (s *testServer) openSession(t *testing.T, patient, doctor types.TokenResponse, patientLang, doctorLang string) models.Consultation {
	t.Helper()
	resp, body := s.do(t, "POST", "/consultations/request", patient.AccessToken,
		types.RequestConsultationRequest{PatientLanguage: &patientLang})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var session models.Consultation
	require.NoError(t, json.Unmarshal(body, &session))

	resp, body = s.do(t, "PUT", "/consultations/"+session.ID.String()+"/accept", doctor.AccessToken,
		types.AcceptConsultationRequest{DoctorLanguage: &doctorLang})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &session))
	return session
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	resp, body := s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-cache")

	resp, body = s.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, string(body))
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	tok := s.signup(t, "Patient@Example.com", models.RolePatient)
	assert.Equal(t, "bearer", tok.TokenType)
	assert.Equal(t, "patient@example.com", tok.User.Email)

	resp, _ := s.do(t, "POST", "/auth/signup", "", types.SignupRequest{
		Email: "patient@example.com", Password: "secret123", FullName: "Dup", Role: models.RolePatient,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	for _, bad := range []types.SignupRequest{
		{Email: "a@example.com", Password: "short", FullName: "A", Role: models.RolePatient},
		{Email: "not-an-email", Password: "secret123", FullName: "A", Role: models.RolePatient},
		{Email: "b@example.com", Password: "secret123", FullName: "B", Role: "admin"},
	} {
		resp, _ := s.do(t, "POST", "/auth/signup", "", bad)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad.Email)
	}

	resp, _ = s.do(t, "POST", "/auth/login", "", types.LoginRequest{Email: "patient@example.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = s.do(t, "POST", "/auth/login", "", types.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, "POST", "/auth/login", "", types.LoginRequest{Email: "patient@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decode[types.TokenResponse](t, body)
	assert.NotEmpty(t, login.AccessToken)
	assert.NotEmpty(t, resp.Cookies())

	resp, body = s.do(t, "GET", "/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[models.User](t, body)
	assert.Equal(t, tok.User.ID, me.ID)
	assert.NotContains(t, string(body), "secret123")

	resp, _ = s.do(t, "GET", "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConsultationLifecycle(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)

	resp, _ := s.do(t, "POST", "/consultations/request", doctor.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := s.do(t, "POST", "/consultations/request", patient.AccessToken, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[models.Consultation](t, body)
	assert.Equal(t, models.StatusWaiting, session.Status)

	resp, _ = s.do(t, "POST", "/consultations/request", patient.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, "GET", "/consultations?status=waiting", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queue := decode[[]types.ConsultationView](t, body)
	require.Len(t, queue, 1)
	assert.Equal(t, "Test patient", queue[0].PatientName)

	resp, _ = s.do(t, "GET", "/consultations?status=bogus", doctor.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	path := "/consultations/" + session.ID.String()
	resp, _ = s.do(t, "PUT", path+"/accept", patient.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, body = s.do(t, "PUT", path+"/accept", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.StatusActive, decode[models.Consultation](t, body).Status)
	resp, _ = s.do(t, "PUT", path+"/accept", doctor.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = s.do(t, "POST", "/chat/"+session.ID.String()+"/send", patient.AccessToken, types.SendMessageRequest{Content: "I have a headache"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, "PUT", path+"/end", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ended := decode[models.Consultation](t, body)
	assert.Equal(t, models.StatusCompleted, ended.Status)

	// generated in the background
	require.Eventually(t, func() bool {
		c, err := s.sessions.GetSession(context.Background(), session.ID)
		return err == nil && c.Summary != nil
	}, 2*time.Second, 10*time.Millisecond)

	resp, body = s.do(t, "POST", path+"/summarize", patient.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[types.SummarizeResponse](t, body).Summary)

	resp, _ = s.do(t, "GET", "/consultations/"+uuid.NewString(), doctor.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(t, "GET", "/consultations/not-a-uuid", doctor.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndKeepsCallerSummary(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	session := s.openSession(t, patient, doctor, "es", "en")

	summary := "Tension headache, rest advised"
	resp, body := s.do(t, "PUT", "/consultations/"+session.ID.String()+"/end", doctor.AccessToken,
		types.EndConsultationRequest{Summary: &summary})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ended := decode[models.Consultation](t, body)
	require.NotNil(t, ended.Summary)
	assert.Equal(t, summary, *ended.Summary)
}

func TestSendAndHistory(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	stranger := s.signup(t, "stranger@example.com", models.RolePatient)
	session := s.openSession(t, patient, doctor, "es", "en")
	chat := "/chat/" + session.ID.String()

	resp, body := s.do(t, "POST", chat+"/send", patient.AccessToken, types.SendMessageRequest{Content: "Hola doctor"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	msg := decode[models.Message](t, body)
	assert.Equal(t, "Hola doctor", msg.Content)
	assert.Nil(t, msg.TranslatedContent)

	require.Eventually(t, func() bool {
		m, err := s.messages.GetMessage(context.Background(), msg.ID)
		return err == nil && m.Settled()
	}, 2*time.Second, 10*time.Millisecond)

	resp, body = s.do(t, "GET", chat+"/messages", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[types.MessagePage](t, body)
	require.Len(t, page.Messages, 1)
	require.NotNil(t, page.Messages[0].TranslatedContent)
	assert.Equal(t, "[Mock Translation to en]: Hola doctor", *page.Messages[0].TranslatedContent)
	assert.Empty(t, page.NextCursor)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"stranger send", "POST", chat + "/send", stranger.AccessToken, types.SendMessageRequest{Content: "hi"}, http.StatusForbidden},
		{"stranger history", "GET", chat + "/messages", stranger.AccessToken, nil, http.StatusForbidden},
		{"unknown session", "POST", "/chat/" + uuid.NewString() + "/send", patient.AccessToken, types.SendMessageRequest{Content: "hi"}, http.StatusNotFound},
		{"empty content", "POST", chat + "/send", patient.AccessToken, types.SendMessageRequest{Content: "  "}, http.StatusBadRequest},
		{"no token", "POST", chat + "/send", "", types.SendMessageRequest{Content: "hi"}, http.StatusUnauthorized},
		{"bad cursor", "GET", chat + "/messages?cursor=nope", patient.AccessToken, nil, http.StatusBadRequest},
		{"foreign cursor", "GET", chat + "/messages?cursor=" + uuid.NewString(), patient.AccessToken, nil, http.StatusBadRequest},
		{"bad limit", "GET", chat + "/messages?limit=abc", patient.AccessToken, nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
		})
	}
}

func TestHistoryPagination(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	session := s.openSession(t, patient, doctor, "en", "en")
	chat := "/chat/" + session.ID.String()

	for i := 0; i < 75; i++ {
		_, err := s.messages.Append(context.Background(), session.ID, patient.User.ID, fmt.Sprintf("m%02d", i), nil)
		require.NoError(t, err)
	}

	resp, body := s.do(t, "GET", chat+"/messages", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[types.MessagePage](t, body)
	require.Len(t, first.Messages, 50)
	assert.Equal(t, "m00", first.Messages[0].Content)
	require.Equal(t, first.Messages[49].ID.String(), first.NextCursor)

	resp, body = s.do(t, "GET", chat+"/messages?cursor="+first.NextCursor, doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[types.MessagePage](t, body)
	require.Len(t, second.Messages, 25)
	assert.Equal(t, "m50", second.Messages[0].Content)
	assert.Equal(t, "m74", second.Messages[24].Content)
	assert.Empty(t, second.NextCursor)

	resp, body = s.do(t, "GET", chat+"/messages?limit=500", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[types.MessagePage](t, body).Messages, 75)
}

func audioRequest(t *testing.T, url, token, filename string, data []byte, lang string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	if lang != "" {
		require.NoError(t, mw.WriteField("senderLanguage", lang))
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAudioMessage(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	session := s.openSession(t, patient, doctor, "es", "en")
	url := s.srv.URL + "/chat/" + session.ID.String() + "/audio"

	resp, body := s.send(t, audioRequest(t, url, patient.AccessToken, "note.webm", []byte("RIFF...."), "es"))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	msg := decode[models.Message](t, body)
	require.NotNil(t, msg.AudioURL)
	assert.Contains(t, s.audio.uploads, *msg.AudioURL)
	assert.NotEmpty(t, msg.Content)
	assert.Nil(t, msg.TranslatedContent)

	require.Eventually(t, func() bool {
		m, err := s.messages.GetMessage(context.Background(), msg.ID)
		return err == nil && m.Settled()
	}, 2*time.Second, 10*time.Millisecond)

	resp, _ = s.send(t, audioRequest(t, url, patient.AccessToken, "empty.webm", nil, ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAudioTranscriptionFailure(t *testing.T) {
	s := newServer(t, func(_ *config.Config, ai *translation.Services) {
		ai.Transcriber = failingTranscriber{}
	})
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	session := s.openSession(t, patient, doctor, "en", "en")

	resp, body := s.send(t, audioRequest(t, s.srv.URL+"/chat/"+session.ID.String()+"/audio", doctor.AccessToken, "a.mp3", []byte("ID3"), ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, translation.TranscriptionFailed, decode[models.Message](t, body).Content)
}

func TestSearch(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	stranger := s.signup(t, "stranger@example.com", models.RoleDoctor)
	session := s.openSession(t, patient, doctor, "en", "en")

	for _, content := range []string{"Severe Headache since Monday", "no fever", "headache worse at night"} {
		resp, _ := s.do(t, "POST", "/chat/"+session.ID.String()+"/send", patient.AccessToken, types.SendMessageRequest{Content: content})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := s.do(t, "GET", "/chat/search?q=headache", doctor.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[types.SearchResult](t, body)
	assert.Len(t, res.Messages, 2)

	resp, body = s.do(t, "GET", "/chat/search?q=headache", stranger.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[types.SearchResult](t, body).Messages)
}

func TestAITranslate(t *testing.T) {
	s := newServer(t)
	patient := s.signup(t, "patient@example.com", models.RolePatient)

	resp, body := s.do(t, "POST", "/ai/translate", patient.AccessToken, types.TranslateRequest{Text: "Hola", TargetLanguage: "en"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[Mock Translation to en]: Hola", decode[types.TranslateResponse](t, body).TranslatedText)

	resp, _ = s.do(t, "POST", "/ai/translate", patient.AccessToken, types.TranslateRequest{Text: "Hola"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitedSend(t *testing.T) {
	s := newServer(t, func(cfg *config.Config, _ *translation.Services) {
		cfg.RateLimitPerMinute = 2
	})
	patient := s.signup(t, "patient@example.com", models.RolePatient)
	doctor := s.signup(t, "doctor@example.com", models.RoleDoctor)
	session := s.openSession(t, patient, doctor, "en", "en")
	path := "/chat/" + session.ID.String() + "/send"

	for i := 0; i < 2; i++ {
		resp, _ := s.do(t, "POST", path, patient.AccessToken, types.SendMessageRequest{Content: "hi"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, body := s.do(t, "POST", path, patient.AccessToken, types.SendMessageRequest{Content: "hi"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, string(body), "rate limit")
}
