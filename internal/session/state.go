package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"rice-quality-analyzer/internal/imagecodec"
)

var ErrNotFound = errors.New("session not found")

// State is everything one browser session holds between requests.
type State struct {
	ID        string            `json:"id"`
	Image     *imagecodec.Image `json:"image,omitempty"`
	Result    string            `json:"result,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewState() *State {
	return &State{ID: uuid.NewString(), UpdatedAt: time.Now()}
}

func (s *State) HasResult() bool {
	return s.Result != ""
}

// SetAnalysis replaces the uploaded image and the analysis result together.
func (s *State) SetAnalysis(img *imagecodec.Image, result string) {
	s.Image = img
	s.Result = result
	s.UpdatedAt = time.Now()
}

// ClearResult drops the analysis result; the uploaded image stays for a re-run.
func (s *State) ClearResult() {
	s.Result = ""
	s.UpdatedAt = time.Now()
}

// Store persists session state for the lifetime of a browser session.
type Store interface {
	Load(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
}
