package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partscout/backend/internal/domain"
)

// Aggregator is the engine a session drives. *AggregationService implements it.
type Aggregator interface {
	FetchManufacturers(ctx context.Context, keyword string) (*ManufacturerResult, error)
	FetchProducts(ctx context.Context, keyword string, selected []string) (*ProductResult, error)
}

// SessionService implements the search session state machine:
// Idle -> ManufacturersFetched -> ProductsFetched, with reset from any state.
// Transitions take a session value and return the next one. On error the
// input session is returned unchanged.
type SessionService struct {
	engine Aggregator
	now    func() time.Time
}

// NewSessionService creates a session service driving the given engine
func NewSessionService(engine Aggregator) *SessionService {
	return &SessionService{
		engine: engine,
		now:    time.Now,
	}
}

// NewSession returns an idle session with a fresh ID
func (s *SessionService) NewSession() domain.SearchSession {
	now := s.now()
	return domain.SearchSession{
		ID:                    uuid.NewString(),
		State:                 domain.StateIdle,
		SelectedManufacturers: []string{},
		ManufacturerOptions:   []domain.ManufacturerOption{},
		Products:              []domain.Product{},
		SourceOutcomes:        []domain.SourceOutcome{},
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// SubmitKeyword starts a search flow from any state by discovering the
// manufacturers for keyword. Earlier results and selections are dropped.
func (s *SessionService) SubmitKeyword(ctx context.Context, session domain.SearchSession, keyword string) (domain.SearchSession, error) {
	if !knownState(session.State) {
		return session, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidTransition, session.State)
	}
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return session, fmt.Errorf("%w: keyword is empty", domain.ErrInvalidInput)
	}

	result, err := s.engine.FetchManufacturers(ctx, keyword)
	if err != nil {
		log.Printf("[Session] %s: manufacturer discovery for %q failed: %v", session.ID, keyword, err)
		return session, err
	}

	next := s.cleared(session)
	next.Keyword = keyword
	next.State = domain.StateManufacturersFetched
	next.ManufacturerOptions = result.Options
	next.SourceOutcomes = append([]domain.SourceOutcome{}, result.Outcomes...)
	s.touch(&next)

	log.Printf("[Session] %s: %d manufacturer options for %q", next.ID, len(next.ManufacturerOptions), keyword)
	return next, nil
}

// SelectManufacturers stores the selection and searches products for it.
// Names are normalized and must be among the session's options.
func (s *SessionService) SelectManufacturers(ctx context.Context, session domain.SearchSession, manufacturers []string) (domain.SearchSession, error) {
	if err := requireOptions(session); err != nil {
		return session, err
	}

	selection, err := validSelection(session, manufacturers)
	if err != nil {
		return session, err
	}
	if len(selection) == 0 {
		return session, fmt.Errorf("%w: select at least one manufacturer", domain.ErrInvalidInput)
	}

	next := session.Clone()
	next.SelectedManufacturers = selection
	return s.fetchProducts(ctx, session, next)
}

// SelectAllManufacturers selects every discovered manufacturer without
// searching.
func (s *SessionService) SelectAllManufacturers(session domain.SearchSession) (domain.SearchSession, error) {
	if err := requireOptions(session); err != nil {
		return session, err
	}

	selection := make([]string, 0, len(session.ManufacturerOptions))
	for _, opt := range session.ManufacturerOptions {
		selection = append(selection, opt.CanonicalName)
	}
	sort.Strings(selection)

	next := session.Clone()
	next.SelectedManufacturers = selection
	s.touch(&next)
	return next, nil
}

// ClearManufacturerSelection empties the selection without searching
func (s *SessionService) ClearManufacturerSelection(session domain.SearchSession) (domain.SearchSession, error) {
	if err := requireOptions(session); err != nil {
		return session, err
	}

	next := session.Clone()
	next.SelectedManufacturers = []string{}
	s.touch(&next)
	return next, nil
}

// SearchProducts searches products for the current selection
func (s *SessionService) SearchProducts(ctx context.Context, session domain.SearchSession) (domain.SearchSession, error) {
	if err := requireOptions(session); err != nil {
		return session, err
	}
	if len(session.SelectedManufacturers) == 0 {
		return session, fmt.Errorf("%w: select at least one manufacturer", domain.ErrInvalidInput)
	}
	return s.fetchProducts(ctx, session, session.Clone())
}

// Reset returns the session to Idle, keeping only its identity
func (s *SessionService) Reset(session domain.SearchSession) domain.SearchSession {
	next := s.cleared(session)
	s.touch(&next)
	log.Printf("[Session] %s: reset", next.ID)
	return next
}

func (s *SessionService) fetchProducts(ctx context.Context, session, next domain.SearchSession) (domain.SearchSession, error) {
	result, err := s.engine.FetchProducts(ctx, session.Keyword, next.SelectedManufacturers)
	if err != nil {
		log.Printf("[Session] %s: product search for %q failed: %v", session.ID, session.Keyword, err)
		return session, err
	}

	outcomes := make([]domain.SourceOutcome, 0, len(session.SourceOutcomes)+len(result.Outcomes))
	for _, o := range session.SourceOutcomes {
		if o.Phase == domain.PhaseManufacturers {
			outcomes = append(outcomes, o)
		}
	}
	outcomes = append(outcomes, result.Outcomes...)

	next.State = domain.StateProductsFetched
	next.Products = result.Products
	next.SourceOutcomes = outcomes
	s.touch(&next)

	log.Printf("[Session] %s: %d products for %d manufacturers", next.ID, len(next.Products), len(next.SelectedManufacturers))
	return next, nil
}

// cleared keeps the session's identity and revision and drops everything else
func (s *SessionService) cleared(session domain.SearchSession) domain.SearchSession {
	return domain.SearchSession{
		ID:                    session.ID,
		State:                 domain.StateIdle,
		SelectedManufacturers: []string{},
		ManufacturerOptions:   []domain.ManufacturerOption{},
		Products:              []domain.Product{},
		SourceOutcomes:        []domain.SourceOutcome{},
		CreatedAt:             session.CreatedAt,
		UpdatedAt:             session.UpdatedAt,
		Revision:              session.Revision,
	}
}

func (s *SessionService) touch(session *domain.SearchSession) {
	session.UpdatedAt = s.now()
	session.Revision++
}

func knownState(state domain.SessionState) bool {
	switch state {
	case domain.StateIdle, domain.StateManufacturersFetched, domain.StateProductsFetched:
		return true
	}
	return false
}

func requireOptions(session domain.SearchSession) error {
	switch session.State {
	case domain.StateManufacturersFetched, domain.StateProductsFetched:
		return nil
	default:
		return fmt.Errorf("%w: no manufacturers discovered in state %s", domain.ErrInvalidTransition, session.State)
	}
}

// validSelection normalizes names into a sorted set, rejecting names the
// session never offered
func validSelection(session domain.SearchSession, manufacturers []string) ([]string, error) {
	offered := make(map[string]bool, len(session.ManufacturerOptions))
	for _, opt := range session.ManufacturerOptions {
		offered[opt.CanonicalName] = true
	}

	set := make(map[string]bool, len(manufacturers))
	for _, name := range manufacturers {
		canonical := NormalizeManufacturerLabel(name)
		if canonical == "" {
			continue
		}
		if !offered[canonical] {
			return nil, fmt.Errorf("%w: unknown manufacturer %q", domain.ErrInvalidInput, name)
		}
		set[canonical] = true
	}
	return sortedKeys(set), nil
}
