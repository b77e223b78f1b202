package main

// Flag structs to decouple cobra from logic for testing.

type GlobalFlags struct {
	Home     string
	LogLevel string
}

type StartFlags struct {
	ConfigPath string
	Name       string
	Namespace  string
	Target     string
	Args       []string
}

type RestartFlags struct {
	ConfigPath string
	Namespace  string
	Target     string
	Args       []string
}

type ListFlags struct {
	System bool
	Output string
}

type HistoryFlags struct {
	Target string
	Limit  int
	Output string
}
