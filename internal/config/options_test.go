package config

import "testing"

func minimalValidOptions() *Options {
	return &Options{
		BaseURL:             "https://api.palisade.dev",
		Mode:                ModeStrict,
		HistoryCapacity:     100,
		FreshSeconds:        60,
		MaxSeconds:          300,
		PollIntervalSeconds: 2,
		PollTimeoutSeconds:  300,
		FailMode:            FailClosed,
	}
}

func TestValidateValidOptions(t *testing.T) {
	t.Parallel()

	if err := minimalValidOptions().Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidateRejectsMissingBaseURL(t *testing.T) {
	t.Parallel()

	opts := minimalValidOptions()
	opts.BaseURL = ""
	if err := opts.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing base URL")
	}
}

func TestValidateRejectsBadMode(t *testing.T) {
	t.Parallel()

	opts := minimalValidOptions()
	opts.Mode = "chaotic"
	if err := opts.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unknown mode")
	}
}

func TestValidateRejectsFreshNotLessThanMax(t *testing.T) {
	t.Parallel()

	opts := minimalValidOptions()
	opts.FreshSeconds = 300
	opts.MaxSeconds = 60
	if err := opts.Validate(); err == nil {
		t.Error("Validate() = nil, want error when fresh_seconds >= max_seconds")
	}
}

func TestValidateRejectsBadFailMode(t *testing.T) {
	t.Parallel()

	opts := minimalValidOptions()
	opts.FailMode = "sideways"
	if err := opts.Validate(); err == nil {
		t.Error("Validate() = nil, want error for unknown fail mode")
	}
}
