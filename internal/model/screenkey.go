package model

// ScreenKey is an opaque string identifier naming a matcher or composite
// matcher, e.g. "battle_start" or "battle_rules/ガチホコ". Globally unique
// within a loaded configuration.
type ScreenKey string
