// Package verified turns newly verified speedrun.com runs into channel
// notifications. It owns the run record, the posted-run set and the polling
// loops that tie them to the leaderboard client.
package verified

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"speedrun-bot/speedrun"
)

// Unranked marks a run that could not be located in its leaderboard.
const Unranked = -1

const lookupAttempts = 5

// LeaderboardSource is the part of the leaderboard client a Record calls
// back into for enrichment.
type LeaderboardSource interface {
	GetLeaderboard(ctx context.Context, gameID, categoryID string, subcategories map[string]string, asOf time.Time) ([]speedrun.Placement, error)
	UserName(ctx context.Context, userID string) (string, error)
}

// VerificationStateError is returned when a Record is built from a run that
// is not verified.
type VerificationStateError struct {
	RunID  string
	Status string
}

func (e *VerificationStateError) Error() string {
	return fmt.Sprintf("run %s has status %q, expected %q", e.RunID, e.Status, speedrun.StatusVerified)
}

// Record is a verified run normalized for publishing. Rank and verifier are
// resolved lazily, at most once each.
type Record struct {
	ID           string
	URL          string
	GameID       string
	GameName     string
	CategoryID   string
	CategoryName string
	RunnerName   string
	RunnerURL    string

	DurationSeconds float64
	DurationDisplay string
	DatePlayed      time.Time
	DateVerified    time.Time
	ExaminerID      string

	// Subcategories holds the run's values for the category's subcategory
	// variables. It scopes every rank lookup.
	Subcategories     map[string]string
	SubcategoryLabels []string
	Variants          []Variant

	source     LeaderboardSource
	newBackOff func() backoff.BackOff

	mu           sync.Mutex
	rank         *int
	verifiedBy   *string
	variantRanks map[string]int
}

type RecordOption func(*recordOptions)

type recordOptions struct {
	extractor  VariantExtractor
	variables  map[string]speedrun.Variable
	newBackOff func() backoff.BackOff
}

// WithVariants enables game specific variant facts, read with the given
// extractor from the run values and the game's variable definitions.
func WithVariants(extractor VariantExtractor, variables map[string]speedrun.Variable) RecordOption {
	return func(o *recordOptions) {
		o.extractor = extractor
		o.variables = variables
	}
}

// WithBackOff overrides the delay policy between enrichment attempts.
func WithBackOff(newBackOff func() backoff.BackOff) RecordOption {
	return func(o *recordOptions) {
		o.newBackOff = newBackOff
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	return b
}

// NewRecord builds a Record from a run listed by the leaderboard client.
func NewRecord(run *speedrun.Run, source LeaderboardSource, opts ...RecordOption) (*Record, error) {
	if run.Status.Status != speedrun.StatusVerified {
		return nil, &VerificationStateError{RunID: run.ID, Status: run.Status.Status}
	}

	options := recordOptions{newBackOff: defaultBackOff}
	for _, opt := range opts {
		opt(&options)
	}

	category := run.Category.Data
	r := &Record{
		ID:              run.ID,
		URL:             run.Weblink,
		GameID:          run.Game.Data.ID,
		GameName:        run.Game.Data.Names.International,
		CategoryID:      category.ID,
		CategoryName:    category.Name,
		RunnerName:      "Unknown",
		DurationSeconds: run.Times.PrimaryT,
		DurationDisplay: FormatDuration(run.Times.PrimaryT),
		DatePlayed:      run.DatePlayed(),
		DateVerified:    run.VerifyDate(),
		ExaminerID:      run.Status.Examiner,
		Subcategories:   make(map[string]string),
		source:          source,
		newBackOff:      options.newBackOff,
		variantRanks:    make(map[string]int),
	}

	if len(run.Players.Data) > 0 {
		runner := run.Players.Data[0]
		if name := runner.DisplayName(); name != "" {
			r.RunnerName = name
		}
		r.RunnerURL = runner.Weblink
	}

	for _, variable := range category.Variables.Data {
		if !variable.IsSubcategory {
			continue
		}
		value, ok := run.Values[variable.ID]
		if !ok {
			continue
		}
		r.Subcategories[variable.ID] = value
		r.SubcategoryLabels = append(r.SubcategoryLabels, variable.Label(value))
	}

	if options.extractor != nil {
		r.Variants = options.extractor.Extract(run, options.variables)
	}
	return r, nil
}

// Title is "{game} - {category} - {subcategory labels}".
func (r *Record) Title() string {
	return fmt.Sprintf("%s - %s - %s", r.GameName, r.CategoryName, strings.Join(r.SubcategoryLabels, ", "))
}

// Rank returns the run's place in its subcategory leaderboard as of its
// verification time, or Unranked.
func (r *Record) Rank(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rank == nil {
		rank := r.lookupRank(ctx, r.Subcategories)
		r.rank = &rank
	}
	return *r.rank
}

// VariantRank returns the run's place in the leaderboard further scoped by
// the named variant. A variant the run does not carry is Unranked.
func (r *Record) VariantRank(ctx context.Context, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rank, ok := r.variantRanks[name]; ok {
		return rank
	}

	rank := Unranked
	for _, variant := range r.Variants {
		if variant.Name != name || !variant.Present() {
			continue
		}
		scope := make(map[string]string, len(r.Subcategories)+1)
		for id, value := range r.Subcategories {
			scope[id] = value
		}
		scope[variant.VariableID] = variant.ValueID
		rank = r.lookupRank(ctx, scope)
		break
	}
	r.variantRanks[name] = rank
	return rank
}

func (r *Record) lookupRank(ctx context.Context, subcategories map[string]string) int {
	place, err := backoff.Retry(ctx, func() (int, error) {
		placements, err := r.source.GetLeaderboard(ctx, r.GameID, r.CategoryID, subcategories, r.DateVerified)
		if err != nil {
			if speedrun.IsTransient(err) {
				return Unranked, err
			}
			return Unranked, backoff.Permanent(err)
		}
		for _, placement := range placements {
			if placement.RunID == r.ID {
				return placement.Place, nil
			}
		}
		return Unranked, nil
	}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(lookupAttempts))
	if err != nil {
		log.Warn().Err(err).Msgf("[VerifiedRuns] Failed to rank run %s", r.ID)
		return Unranked
	}
	return place
}

// VerifiedBy returns the examiner's display name. After repeated lookup
// failures it falls back to the raw examiner id.
func (r *Record) VerifiedBy(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.verifiedBy != nil {
		return *r.verifiedBy
	}

	name := r.ExaminerID
	if name == "" {
		name = "Unknown"
	} else {
		resolved, err := backoff.Retry(ctx, func() (string, error) {
			return r.source.UserName(ctx, r.ExaminerID)
		}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(lookupAttempts))
		if err != nil {
			log.Warn().Err(err).Msgf("[VerifiedRuns] Failed to resolve verifier %s of run %s", r.ExaminerID, r.ID)
		} else if resolved != "" {
			name = resolved
		}
	}
	r.verifiedBy = &name
	return name
}
