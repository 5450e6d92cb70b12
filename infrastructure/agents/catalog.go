// Package agents is the closed catalog of model tasks: the twelve
// client-facing analysis agents plus the scoring, guide, candidate and
// review tasks the pipeline runs internally.
//
// A Task couples a text/template prompt with the Shape its JSON answer must
// satisfy. Tasks exist only as the package-level variables below; callers
// resolve client-supplied identifiers through Lookup.
package agents

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ahrav/shinise-scout/internal/domain"
)

// DefaultGenre is the category searched when the user leaves genre empty.
const DefaultGenre = "飲食店、総菜屋、甘味処、和菓子屋"

// Meta is the display metadata of a task.
type Meta struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// PromptInput is everything a prompt template can reference.
type PromptInput struct {
	Shop domain.Shop
	// Area is the station name used by the candidate task.
	Area  string
	Genre string
	Mode  domain.Mode
	// Now fills the date line. Zero means time.Now.
	Now time.Time
}

// promptData is the value templates execute against.
type promptData struct {
	Name        string
	Address     string
	AddressArea string
	Types       string
	ReviewText  string
	Area        string
	Genre       string
	Adventure   bool
	Today       string
}

// reviewWindow controls how many reviews reach the prompt and how they are
// joined. Zero runes keeps each review whole.
type reviewWindow struct {
	limit int
	runes int
	sep   string
}

// Task is one entry of the catalog.
type Task struct {
	id       domain.TaskID
	meta     Meta
	tmpl     *template.Template
	shape    *Shape
	grounded bool
	reviews  reviewWindow
}

// ID returns the task identifier.
func (t *Task) ID() domain.TaskID { return t.id }

// Meta returns the display metadata.
func (t *Task) Meta() Meta { return t.meta }

// Shape returns the output shape.
func (t *Task) Shape() *Shape { return t.shape }

// Grounded reports whether the task needs live web search.
func (t *Task) Grounded() bool { return t.grounded }

// Prompt renders the task's prompt for in.
func (t *Task) Prompt(in PromptInput) (string, error) {
	if t == nil || t.tmpl == nil {
		return "", errors.New("prompt of an uninitialized task")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	genre := strings.TrimSpace(in.Genre)
	if genre == "" {
		genre = DefaultGenre
	}

	data := promptData{
		Name:        in.Shop.Name,
		Address:     in.Shop.Address,
		AddressArea: addressArea(in.Shop.Address),
		Types:       strings.Join(in.Shop.Types, ", "),
		ReviewText:  t.reviews.render(in.Shop.Reviews),
		Area:        in.Area,
		Genre:       genre,
		Adventure:   in.Mode == domain.ModeAdventure,
		Today:       jaDate(now),
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.id, err)
	}
	return b.String(), nil
}

func (w reviewWindow) render(reviews []string) string {
	if w.limit == 0 || len(reviews) == 0 {
		return ""
	}
	picked := first(w.limit, reviews)
	out := make([]string, 0, len(picked))
	for _, r := range picked {
		if w.runes > 0 {
			r = truncate(r, w.runes)
		}
		out = append(out, r)
	}
	return strings.Join(out, w.sep)
}

func mustTemplate(id domain.TaskID, text string) *template.Template {
	return template.Must(template.New(string(id)).Funcs(templateFuncs()).Parse(text))
}

var (
	scoredAgentShape = NewShape(
		Field{Name: "summary", Kind: KindString},
		Field{Name: "details", Kind: KindStringList},
		Field{Name: "score", Kind: KindNumber},
	)
	riskAgentShape = NewShape(
		Field{Name: "summary", Kind: KindString},
		Field{Name: "details", Kind: KindStringList},
		Field{Name: "riskLevel", Kind: KindRisk},
	)
)

func newAgent(id domain.TaskID, meta Meta, body string, shape *Shape) *Task {
	return &Task{
		id:       id,
		meta:     meta,
		tmpl:     mustTemplate(id, body+agentDateLine),
		shape:    shape,
		grounded: true,
	}
}

// Client-facing agents.
var (
	Praiser = newAgent(domain.TaskPraiser, Meta{"魅力発掘アナリスト", "✨", "創業年・良い点・こだわり"}, praiserPrompt, scoredAgentShape)
	Critic  = newAgent(domain.TaskCritic, Meta{"辛口レビュー分析官", "🧐", "サクラ排除・欠点抽出"}, criticPrompt, riskAgentShape)
	Crowd   = newAgent(domain.TaskCrowd, Meta{"リアルタイム混雑探偵", "🕵️", "今の混雑・予約難易度"}, crowdPrompt, scoredAgentShape)
	Menu    = newAgent(domain.TaskMenu, Meta{"看板メニュー鑑定士", "🍖", "必食メニュー特定"}, menuPrompt, scoredAgentShape)
	Smoking = newAgent(domain.TaskSmoking, Meta{"喫煙/禁煙ポリス", "🚬", "喫煙ルール徹底調査"}, smokingPrompt, riskAgentShape)
	Date    = newAgent(domain.TaskDate, Meta{"デート適正診断士", "💘", "雰囲気・距離感判定"}, datePrompt, scoredAgentShape)
	Sake    = newAgent(domain.TaskSake, Meta{"日本酒愛好家", "🍶", "地酒・銘柄・品揃え"}, sakePrompt, scoredAgentShape)
	Insta   = newAgent(domain.TaskInsta, Meta{"インスタ映え判定士", "📸", "映えポイント・照明分析"}, instaPrompt, scoredAgentShape)
	RedFlag = newAgent(domain.TaskRedFlag, Meta{"地雷回避コンサルタント", "💣", "店主の癖・提供スピード"}, redFlagPrompt, riskAgentShape)
	Budget  = newAgent(domain.TaskBudget, Meta{"コスパ・割り勘計算官", "💰", "リアル予算・決済方法"}, budgetPrompt, scoredAgentShape)
	BizRisk = newAgent(domain.TaskBizRisk, Meta{"接待リスクマネージャー", "👔", "個室・音漏れ・領収書"}, bizRiskPrompt, riskAgentShape)
	Family  = newAgent(domain.TaskFamily, Meta{"ママ友会・子連れ探偵", "👶", "ベビーカー・子供椅子"}, familyPrompt, scoredAgentShape)
)

// Pipeline tasks.
var (
	Score = &Task{
		id:   domain.TaskScore,
		meta: Meta{Name: "老舗鑑定", Icon: "🏮", Description: "老舗スコア判定"},
		tmpl: mustTemplate(domain.TaskScore, scorePrompt),
		shape: NewShape(
			Field{Name: "score", Kind: KindNumber, Required: true},
			Field{Name: "reasoning", Kind: KindString},
			Field{Name: "short_summary", Kind: KindString},
			Field{Name: "is_shinise", Kind: KindBool},
			Field{Name: "founding_year", Kind: KindString},
			Field{Name: "tabelog_rating", Kind: KindNumber},
		),
		grounded: true,
		reviews:  reviewWindow{limit: 5, runes: 300, sep: "\n"},
	}

	Guide = &Task{
		id:   domain.TaskGuide,
		meta: Meta{Name: "老舗ガイド", Icon: "📖", Description: "歴史・おすすめ・雰囲気"},
		tmpl: mustTemplate(domain.TaskGuide, guidePrompt),
		shape: NewShape(
			Field{Name: "history_background", Kind: KindString},
			Field{Name: "recommended_points", Kind: KindString},
			Field{Name: "atmosphere", Kind: KindString},
			Field{Name: "best_time_to_visit", Kind: KindString},
			Field{Name: "tabelog_url", Kind: KindString},
			Field{Name: "smoking_status", Kind: KindString},
		),
		grounded: true,
		reviews:  reviewWindow{limit: 5, sep: "\n"},
	}

	Candidates = &Task{
		id:   domain.TaskCandidates,
		meta: Meta{Name: "候補抽出", Icon: "🔎", Description: "エリアの候補店リスト"},
		tmpl: mustTemplate(domain.TaskCandidates, candidatesPrompt),
		shape: NewShape(
			Field{Name: "candidates", Kind: KindObjectList, Required: true, Items: NewShape(
				Field{Name: "name", Kind: KindString, Required: true},
				Field{Name: "tabelog_rating", Kind: KindNumber},
				Field{Name: "reasoning", Kind: KindString},
				Field{Name: "founding_year", Kind: KindString},
			)},
		),
		grounded: true,
	}

	ReviewAnalysis = &Task{
		id:   domain.TaskReviewAnalysis,
		meta: Meta{Name: "口コミ分析", Icon: "🔍", Description: "サクラ検知・ネガティブ抽出"},
		tmpl: mustTemplate(domain.TaskReviewAnalysis, reviewAnalysisPrompt),
		shape: NewShape(
			Field{Name: "is_suspicious", Kind: KindBool},
			Field{Name: "suspicion_level", Kind: KindString},
			Field{Name: "suspicion_reason", Kind: KindString},
			Field{Name: "negative_points", Kind: KindStringList},
			Field{Name: "reality_summary", Kind: KindString},
		),
		reviews: reviewWindow{limit: 10, sep: "\n---\n"},
	}
)

var agentCatalog = []*Task{
	Praiser, Critic, Crowd, Menu, Smoking, Date,
	Sake, Insta, RedFlag, Budget, BizRisk, Family,
}

var agentsByID = func() map[domain.TaskID]*Task {
	m := make(map[domain.TaskID]*Task, len(agentCatalog))
	for _, t := range agentCatalog {
		m[t.id] = t
	}
	return m
}()

// AgentTasks returns the client-facing agents in catalog order.
func AgentTasks() []*Task {
	out := make([]*Task, len(agentCatalog))
	copy(out, agentCatalog)
	return out
}

// Lookup resolves a client-supplied agent identifier. Pipeline tasks are
// not reachable through it.
func Lookup(id domain.TaskID) (*Task, error) {
	t, ok := agentsByID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTask, id)
	}
	return t, nil
}

// MustLookup is Lookup for identifiers known at compile time.
func MustLookup(id domain.TaskID) *Task {
	t, err := Lookup(id)
	if err != nil {
		panic(err)
	}
	return t
}

// CatalogEntry is the wire form of one agent in the catalog listing.
type CatalogEntry struct {
	ID domain.TaskID `json:"id"`
	Meta
}

// Catalog lists every client-facing agent with its metadata.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(agentCatalog))
	for i, t := range agentCatalog {
		out[i] = CatalogEntry{ID: t.id, Meta: t.meta}
	}
	return out
}
