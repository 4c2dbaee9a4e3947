package tui

import "time"

type Config struct {
	ReplaceHomeWithTilde bool          `json:"replace_home_with_tilde"`
	ProgressUpdateFreq   time.Duration `json:"progress_update_freq"`
	// HistorySize is how many journal entries the history view shows.
	HistorySize int `json:"history_size"`
}

func DefaultConfig() Config {
	return Config{
		ReplaceHomeWithTilde: true,
		ProgressUpdateFreq:   150 * time.Millisecond,
		HistorySize:          15,
	}
}
