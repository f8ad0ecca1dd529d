package chessdto

type Settings struct {
	Difficulty  string `json:"difficulty"`
	PlayerColor string `json:"playerColor"`
	TimeControl string `json:"timeControl"`
}

// SettingsPatch updates only the fields that are present.
type SettingsPatch struct {
	Difficulty  *string `json:"difficulty,omitempty"`
	PlayerColor *string `json:"playerColor,omitempty"`
	TimeControl *string `json:"timeControl,omitempty"`
}

type NewGameRequest struct {
	Settings *SettingsPatch `json:"settings,omitempty"`
}

type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

type NavigateRequest struct {
	Index int `json:"index"`
}

type SettingsResponse struct {
	Settings Settings `json:"settings"`
}

type HistoryResponse struct {
	Games []*ChessGame `json:"games"`
}

type GameResponse struct {
	Game *ChessGame `json:"game"`
}
