package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c, srv
}

func validRequest() Request {
	return Request{
		Transcript:  "hello world this is my talk",
		Duration:    30,
		Goal:        "sound confident",
		Personality: Mentor,
	}
}

func TestAnalyzeSendsMultipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "hello world this is my talk", r.FormValue("transcript"))
		assert.Equal(t, "sound confident", r.FormValue("userGoal"))
		assert.Equal(t, "mentor", r.FormValue("aiPersonality"))
		assert.Equal(t, "30", r.FormValue("duration"))

		f, hdr, err := r.FormFile("audio")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "recording.webm", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "webm-bytes", string(data))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"overall_score":8.5,"clarityScore":7,"pace":120,"fillerWords":{"um":2,"like":1},"aiSummary":"Good","constructiveTip":"Pause more","sessionId":"s-1"}`)
	})

	req := validRequest()
	req.Audio = []byte("webm-bytes")
	res, err := c.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 8.5, res.OverallScore)
	assert.Equal(t, 120, res.Pace)
	assert.Equal(t, 3, res.FillerTotal())
	assert.Equal(t, "Pause more", res.Tip)
	assert.Equal(t, "s-1", res.SessionID)
}

func TestAnalyzeOmitsEmptyAudio(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("audio")
		assert.ErrorIs(t, err, http.ErrMissingFile)
		io.WriteString(w, `{"overall_score":5}`)
	})

	_, err := c.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
}

func TestAnalyzeValidationNeverCallsBackend(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	req := validRequest()
	req.Goal = "   "
	_, err := c.Analyze(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingGoal)

	req = validRequest()
	req.Transcript = "\n"
	_, err = c.Analyze(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	req = validRequest()
	req.Personality = "sarcastic"
	_, err = c.Analyze(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidPersonality)

	assert.Zero(t, calls.Load())
}

func TestAnalyzeStatusError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := c.Analyze(context.Background(), validRequest())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
	assert.Equal(t, "internal error", se.Body)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), calls.Load(), "no automatic retry")
}

func TestAnalyzeInvalidJSONIsUnreachable(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>proxy</html>")
	})

	_, err := c.Analyze(context.Background(), validRequest())

	var ue *UnreachableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, srv.URL, ue.Endpoint)
	assert.Contains(t, Message(err), srv.URL)
}

func TestAnalyzeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = c.Analyze(context.Background(), validRequest())
	var ue *UnreachableError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, Message(err), "Could not connect to the backend")
}

func TestAnalyzeCanceledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Analyze(ctx, validRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeedbackBothShapes(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feedback/flat":
			io.WriteString(w, `{"overall_score":7,"aiSummary":"flat"}`)
		case "/feedback/wrapped":
			io.WriteString(w, `{"session_id":"wrapped","feedback":{"overall_score":9,"aiSummary":"nested"}}`)
		default:
			http.NotFound(w, r)
		}
	})

	flat, err := c.Feedback(context.Background(), "flat")
	require.NoError(t, err)
	assert.Equal(t, "flat", flat.Summary)
	assert.Equal(t, "flat", flat.SessionID)

	wrapped, err := c.Feedback(context.Background(), "wrapped")
	require.NoError(t, err)
	assert.Equal(t, 9.0, wrapped.OverallScore)
	assert.Equal(t, "nested", wrapped.Summary)

	_, err = c.Feedback(context.Background(), "missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestRecordingsNewestFirst(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Recording{
			{SessionID: "old", Timestamp: "2024-01-01T10:00:00Z"},
			{SessionID: "new", Timestamp: "2024-03-01T10:00:00Z"},
			{SessionID: "mid", Timestamp: "2024-02-01T10:00:00.123456"},
		})
	})

	recs, err := c.Recordings(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{recs[0].SessionID, recs[1].SessionID, recs[2].SessionID})
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Please enter your speech goal before recording!", Message(ErrMissingGoal))
	assert.Equal(t, "No speech detected. Please try recording again.", Message(ErrEmptyTranscript))
	assert.Contains(t, Message(&StatusError{StatusCode: 502}), "502")
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "::not a url"})
	assert.Error(t, err)

	c, err := NewClient(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}
