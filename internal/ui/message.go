package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgGenerated
	MsgSaved
	MsgFeedbackSent
)

type resultData struct {
	result *models.PlaylistResult
	err    error
}

type feedbackData struct {
	index    int
	feedback *models.Feedback
	err      error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// generatedMsg is the constructor for [MsgGenerated]
func generatedMsg(result *models.PlaylistResult, err error) Msg {
	return Msg{kind: MsgGenerated, data: resultData{result, err}}
}

// savedMsg is the constructor for [MsgSaved]
func savedMsg(result *models.PlaylistResult, err error) Msg {
	return Msg{kind: MsgSaved, data: resultData{result, err}}
}

// feedbackSentMsg is the constructor for [MsgFeedbackSent]
func feedbackSentMsg(index int, fb *models.Feedback, err error) Msg {
	return Msg{kind: MsgFeedbackSent, data: feedbackData{index, fb, err}}
}
