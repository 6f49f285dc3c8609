package domain

// OptionView is an option without its correctness flag.
type OptionView struct {
	Index int    `json:"index"`
	Text  string `json:"text,omitempty"`
}

// QuestionView is what clients see of an item while it is open.
type QuestionView struct {
	ID             string       `json:"id"`
	Type           ItemType     `json:"type"`
	QuestionType   QuestionType `json:"questionType,omitempty"`
	Content        string       `json:"content"`
	Options        []OptionView `json:"options"`
	TimeLimit      int          `json:"timeLimit"`
	Points         int          `json:"points"`
	IsDoublePoints bool         `json:"isDoublePoints"`
	MediaURL       string       `json:"mediaUrl,omitempty"`
}

// PublicView strips the answer key from the item.
func (i QuizItem) PublicView() QuestionView {
	opts := make([]OptionView, len(i.Options))
	for n, o := range i.Options {
		opts[n] = OptionView{Index: o.Index, Text: o.Text}
	}
	return QuestionView{
		ID:             i.ID,
		Type:           i.Type,
		QuestionType:   i.QuestionType,
		Content:        i.Content,
		Options:        opts,
		TimeLimit:      i.TimeLimit,
		Points:         BasePoints(i),
		IsDoublePoints: i.IsDoublePoints,
		MediaURL:       i.MediaURL,
	}
}

// AnswerShapes returns option indices only, for the player screen in dual-screen mode.
func (i QuizItem) AnswerShapes() []OptionView {
	opts := make([]OptionView, len(i.Options))
	for n, o := range i.Options {
		opts[n] = OptionView{Index: o.Index}
	}
	return opts
}

// CorrectOptions lists the indices flagged correct.
func (i QuizItem) CorrectOptions() []int {
	var out []int
	for _, o := range i.Options {
		if o.Correct {
			out = append(out, o.Index)
		}
	}
	return out
}

// PlayerSummary is the public view of a player in lobby lists.
type PlayerSummary struct {
	ID        string `json:"id"`
	Nickname  string `json:"name"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	Ready     bool   `json:"isReady"`
}

// PlayerSummaries lists non-removed players in join order.
func (g *GameSession) PlayerSummaries() []PlayerSummary {
	players := g.OrderedPlayers()
	out := make([]PlayerSummary, len(players))
	for i, p := range players {
		out[i] = p.Summary()
	}
	return out
}

func (p *PlayerRecord) Summary() PlayerSummary {
	return PlayerSummary{ID: p.ID, Nickname: p.Nickname, Score: p.Score, Connected: p.Present(), Ready: p.Ready}
}

// GameView is the public view of a session. It never carries the host token.
type GameView struct {
	ID               string          `json:"id"`
	Pin              string          `json:"pin"`
	QuizID           string          `json:"quizId"`
	QuizTitle        string          `json:"quizTitle"`
	QuizBackground   string          `json:"quizBackground,omitempty"`
	Status           GameStatus      `json:"status"`
	Mode             GameMode        `json:"gameMode"`
	AutoAdvance      bool            `json:"autoAdvance"`
	MaxPlayers       int             `json:"maxPlayers"`
	TotalQuestions   int             `json:"totalQuestions"`
	CurrentItemIndex int             `json:"currentItemIndex"`
	ItemState        ItemState       `json:"itemState"`
	Players          []PlayerSummary `json:"players"`
	TotalPlayers     int             `json:"totalPlayers"`
	HostConnected    bool            `json:"hostConnected"`
}

// View builds the public view of g.
func (g *GameSession) View() GameView {
	players := g.PlayerSummaries()
	return GameView{
		ID:               g.ID,
		Pin:              g.Pin,
		QuizID:           g.QuizID,
		QuizTitle:        g.QuizTitle,
		QuizBackground:   g.QuizBackground,
		Status:           g.Status,
		Mode:             g.Mode,
		AutoAdvance:      g.AutoAdvance,
		MaxPlayers:       g.MaxPlayers,
		TotalQuestions:   len(g.Items),
		CurrentItemIndex: g.CurrentItemIndex,
		ItemState:        g.Item.State,
		Players:          players,
		TotalPlayers:     len(players),
		HostConnected:    g.HostConnID != "",
	}
}
