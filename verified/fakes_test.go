package verified

import (
	"context"
	"errors"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"speedrun-bot/speedrun"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func noDelay() RecordOption {
	return WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} })
}

func categoryVariables() []speedrun.Variable {
	return []speedrun.Variable{
		{
			ID:            "heat",
			Name:          "Heat",
			IsSubcategory: true,
			Values: speedrun.VariableValues{Values: map[string]speedrun.VariableValue{
				"h8":  {Label: "8 Heat"},
				"h16": {Label: "16 Heat"},
			}},
		},
		{
			ID:   "weapon",
			Name: "Weapon (OwO)",
			Values: speedrun.VariableValues{Values: map[string]speedrun.VariableValue{
				"w1": {Label: "Stygius"},
			}},
		},
	}
}

func gameVariables() map[string]speedrun.Variable {
	return map[string]speedrun.Variable{
		"aspect": {
			ID:   "aspect",
			Name: "Aspect",
			Values: speedrun.VariableValues{Values: map[string]speedrun.VariableValue{
				"a1": {Label: "Zagreus"},
			}},
		},
	}
}

func verifiedRun(id string, verified time.Time) *speedrun.Run {
	run := &speedrun.Run{
		ID:      id,
		Weblink: "https://www.speedrun.com/hades/run/" + id,
		Date:    "2024-04-30",
		Times:   speedrun.Times{Primary: "PT20M0.5S", PrimaryT: 1200.5},
		Values:  map[string]string{"heat": "h8", "weapon": "w1", "aspect": "a1"},
	}
	run.Game.Data = speedrun.Game{ID: "o1y9j9v6", Names: speedrun.Names{International: "Hades"}}
	run.Category.Data = speedrun.Category{ID: "cat1", Name: "Any Heat"}
	run.Category.Data.Variables.Data = categoryVariables()
	run.Status = speedrun.Status{
		Status:     speedrun.StatusVerified,
		Examiner:   "mod1",
		VerifyDate: verified.UTC().Format(time.RFC3339),
	}
	run.Players.Data = []speedrun.Player{{
		Rel:     "user",
		ID:      "u1",
		Names:   &speedrun.Names{International: "Museus"},
		Weblink: "https://www.speedrun.com/user/Museus",
	}}
	return run
}

type fakeSource struct {
	mu sync.Mutex

	runs    []*speedrun.Run
	listErr error

	placements      map[string][]speedrun.Placement
	leaderboardErrs []error
	users           map[string]string
	userErr         error
	variables       map[string]speedrun.Variable
	iconURL         string

	listCalls        int
	leaderboardCalls int
	userCalls        int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		placements: make(map[string][]speedrun.Placement),
		users:      map[string]string{"mod1": "Moderator"},
		variables:  gameVariables(),
		iconURL:    "https://www.speedrun.com/static/game/o1y9j9v6/icon.png",
	}
}

func (f *fakeSource) addRuns(runs ...*speedrun.Run) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runs...)
}

func (f *fakeSource) ListVerifiedRuns(_ context.Context, gameID string, since *time.Time) iter.Seq2[*speedrun.Run, error] {
	f.mu.Lock()
	f.listCalls++
	listErr := f.listErr
	var runs []*speedrun.Run
	for _, run := range f.runs {
		if run.Game.Data.ID != gameID {
			continue
		}
		if since == nil || run.VerifyDate().After(*since) {
			runs = append(runs, run)
		}
	}
	f.mu.Unlock()

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].VerifyDate().Before(runs[j].VerifyDate()) })
	return func(yield func(*speedrun.Run, error) bool) {
		if listErr != nil {
			yield(nil, listErr)
			return
		}
		for _, run := range runs {
			if !yield(run, nil) {
				return
			}
		}
	}
}

func (f *fakeSource) GetLatestVerifiedRun(context.Context, string) (*speedrun.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return nil, speedrun.ErrNotFound
	}
	latest := f.runs[0]
	for _, run := range f.runs[1:] {
		if run.VerifyDate().After(latest.VerifyDate()) {
			latest = run
		}
	}
	return latest, nil
}

func (f *fakeSource) GetLeaderboard(_ context.Context, _, _ string, subcategories map[string]string, _ time.Time) ([]speedrun.Placement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaderboardCalls++
	if len(f.leaderboardErrs) > 0 {
		err := f.leaderboardErrs[0]
		f.leaderboardErrs = f.leaderboardErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.placements[speedrun.NormalizeSubcategories(subcategories)], nil
}

func (f *fakeSource) UserName(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.userErr != nil {
		return "", f.userErr
	}
	name, ok := f.users[userID]
	if !ok {
		return "", speedrun.ErrNotFound
	}
	return name, nil
}

func (f *fakeSource) GetGameVariables(context.Context, string) map[string]speedrun.Variable {
	return f.variables
}

func (f *fakeSource) GetGameIconURL(context.Context, string) (string, error) {
	if f.iconURL == "" {
		return "", speedrun.ErrNotFound
	}
	return f.iconURL, nil
}

type fakePublisher struct {
	mu sync.Mutex

	channels  map[string]bool
	published []Summary
	announced []string
	// failAfter makes every publish after the first failAfter ones fail.
	failAfter int
}

func newFakePublisher(channels ...string) *fakePublisher {
	p := &fakePublisher{channels: make(map[string]bool), failAfter: -1}
	for _, channel := range channels {
		p.channels[channel] = true
	}
	return p
}

func (p *fakePublisher) ResolveChannel(_ context.Context, channelID string) error {
	if !p.channels[channelID] {
		return errors.New("unknown channel")
	}
	return nil
}

func (p *fakePublisher) Publish(_ context.Context, _ string, summary Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter >= 0 && len(p.published) >= p.failAfter {
		return errors.New("discord unavailable")
	}
	p.published = append(p.published, summary)
	return nil
}

func (p *fakePublisher) Announce(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.announced = append(p.announced, text)
	return nil
}

func (p *fakePublisher) urls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	urls := make([]string, 0, len(p.published))
	for _, summary := range p.published {
		urls = append(urls, summary.URL)
	}
	return urls
}

// memoryStore is a PostedRunStore and WatermarkStore kept in memory.
type memoryStore struct {
	mu sync.Mutex

	ids        []string
	watermarks map[string]time.Time
	loadErr    error
	saveErr    error
	saves      int
}

func newMemoryStore(ids ...string) *memoryStore {
	return &memoryStore{ids: ids, watermarks: make(map[string]time.Time)}
}

func (s *memoryStore) LoadPostedRuns(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]string(nil), s.ids...), nil
}

func (s *memoryStore) SavePostedRuns(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.ids = append([]string(nil), ids...)
	return nil
}

func (s *memoryStore) persisted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func (s *memoryStore) LoadWatermark(_ context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	watermark, ok := s.watermarks[key]
	return watermark, ok, nil
}

func (s *memoryStore) SaveWatermark(_ context.Context, key string, watermark time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[key] = watermark
	return nil
}
