package speedrun

import (
	"errors"
	"fmt"
	"time"

	"github.com/gookit/validate"
)

const (
	StatusVerified = "verified"

	verifyDateLayout = time.RFC3339
	datePlayedLayout = "2006-01-02"
)

type Names struct {
	International string `json:"international"`
	Japanese      string `json:"japanese"`
}

type Link struct {
	Rel string `json:"rel"`
	URI string `json:"uri"`
}

type Asset struct {
	URI string `json:"uri"`
}

// User is the subset of a speedrun.com user the bot reads.
type User struct {
	ID      string `json:"id" validate:"required"`
	Names   Names  `json:"names"`
	Weblink string `json:"weblink"`
	Role    string `json:"role"`
	Links   []Link `json:"links"`
}

type GameAssets struct {
	Icon  *Asset `json:"icon"`
	Cover *Asset `json:"cover-medium"`
}

type Game struct {
	ID           string     `json:"id" validate:"required"`
	Names        Names      `json:"names"`
	Abbreviation string     `json:"abbreviation"`
	Weblink      string     `json:"weblink"`
	Assets       GameAssets `json:"assets"`
}

type VariableValue struct {
	Label string `json:"label"`
	Rules string `json:"rules"`
}

type VariableValues struct {
	Values  map[string]VariableValue `json:"values"`
	Default string                   `json:"default"`
}

// Variable is a game or category variable definition. Subcategory variables
// split a category into separate leaderboards.
type Variable struct {
	ID            string         `json:"id" validate:"required"`
	Name          string         `json:"name" validate:"required"`
	Category      string         `json:"category"`
	Mandatory     bool           `json:"mandatory"`
	UserDefined   bool           `json:"user-defined"`
	Obsoletes     bool           `json:"obsoletes"`
	Values        VariableValues `json:"values"`
	IsSubcategory bool           `json:"is-subcategory"`
}

// Label returns the display label of valueID, or valueID itself when the
// definition does not list it.
func (v Variable) Label(valueID string) string {
	if value, ok := v.Values.Values[valueID]; ok && value.Label != "" {
		return value.Label
	}
	return valueID
}

type Category struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Weblink   string `json:"weblink"`
	Type      string `json:"type"`
	Variables struct {
		Data []Variable `json:"data"`
	} `json:"variables"`
}

type Status struct {
	Status     string `json:"status" validate:"required"`
	Examiner   string `json:"examiner"`
	VerifyDate string `json:"verify-date"`
}

type Times struct {
	Primary  string  `json:"primary"`
	PrimaryT float64 `json:"primary_t"`
}

// Player is an embedded run participant. Guests carry only a name.
type Player struct {
	Rel     string `json:"rel"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Names   *Names `json:"names"`
	Weblink string `json:"weblink"`
}

// DisplayName returns the international name for users and the free-form
// name for guests.
func (p Player) DisplayName() string {
	if p.Names != nil && p.Names.International != "" {
		return p.Names.International
	}
	return p.Name
}

// Run is a run listed with embed=game,category.variables,players.
type Run struct {
	ID      string `json:"id" validate:"required"`
	Weblink string `json:"weblink"`
	Game    struct {
		Data Game `json:"data"`
	} `json:"game"`
	Category struct {
		Data Category `json:"data"`
	} `json:"category"`
	Status  Status `json:"status"`
	Players struct {
		Data []Player `json:"data"`
	} `json:"players"`
	Date      string            `json:"date"`
	Submitted string            `json:"submitted"`
	Times     Times             `json:"times"`
	Values    map[string]string `json:"values"`
}

// VerifyDate parses the moderator verification timestamp. A missing date
// yields the zero time.
func (r *Run) VerifyDate() time.Time {
	t, err := time.Parse(verifyDateLayout, r.Status.VerifyDate)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// DatePlayed parses the day the run was played. A missing date yields the
// zero time.
func (r *Run) DatePlayed() time.Time {
	t, err := time.Parse(datePlayedLayout, r.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Validate checks the fields every consumer of a run relies on.
func (r *Run) Validate() error {
	if err := checkStruct("run", r); err != nil {
		return err
	}
	if err := checkStruct("run status", &r.Status); err != nil {
		return err
	}
	if err := checkStruct("run game", &r.Game.Data); err != nil {
		return err
	}
	if err := checkStruct("run category", &r.Category.Data); err != nil {
		return err
	}
	if r.Game.Data.Names.International == "" {
		return &ValidationError{Schema: "run game", Err: errors.New("names.international is required")}
	}
	if r.Status.Status == StatusVerified {
		if _, err := time.Parse(verifyDateLayout, r.Status.VerifyDate); err != nil {
			return &ValidationError{Schema: "run status", Err: fmt.Errorf("verify-date %q: %w", r.Status.VerifyDate, err)}
		}
	}
	for i := range r.Category.Data.Variables.Data {
		if err := checkStruct("category variable", &r.Category.Data.Variables.Data[i]); err != nil {
			return err
		}
	}
	return nil
}

// Placement is one entry of a leaderboard snapshot.
type Placement struct {
	Place int
	RunID string
}

type leaderboardRun struct {
	Place int `json:"place"`
	Run   struct {
		ID string `json:"id" validate:"required"`
	} `json:"run"`
}

type pagination struct {
	Offset int    `json:"offset"`
	Max    int    `json:"max"`
	Size   int    `json:"size"`
	Links  []Link `json:"links"`
}

func (p pagination) next() (string, bool) {
	for _, link := range p.Links {
		if link.Rel == "next" && link.URI != "" {
			return link.URI, true
		}
	}
	return "", false
}

type runsPage struct {
	Data       []Run      `json:"data"`
	Pagination pagination `json:"pagination"`
}

type userEnvelope struct {
	Data User `json:"data"`
}

type gameEnvelope struct {
	Data Game `json:"data"`
}

type variablesEnvelope struct {
	Data []Variable `json:"data"`
}

type leaderboardEnvelope struct {
	Data struct {
		Weblink string           `json:"weblink"`
		Runs    []leaderboardRun `json:"runs"`
	} `json:"data"`
}

func checkStruct(schema string, v any) error {
	vd := validate.Struct(v)
	if !vd.Validate() {
		return &ValidationError{Schema: schema, Err: vd.Errors}
	}
	return nil
}
