package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/autoplaylist/internal/models"
	"github.com/desertthunder/autoplaylist/internal/tasks"
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
	MsgCollectionsFetched MsgKind = iota
	MsgProgressUpdate
	MsgGenerateComplete
	MsgPublishComplete
)

type collectionsFetched struct {
	collections []models.Collection
	err         error
}

type generateComplete struct {
	result *tasks.Result
	err    error
}

type publishComplete struct {
	created []tasks.Published
	err     error
}

// collectionsFetchedMsg is the constructor for [MsgCollectionsFetched]
func collectionsFetchedMsg(collections []models.Collection, err error) Msg {
	return Msg{kind: MsgCollectionsFetched, data: collectionsFetched{collections, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// generateCompleteMsg is the constructor for [MsgGenerateComplete]
func generateCompleteMsg(result *tasks.Result, err error) Msg {
	return Msg{kind: MsgGenerateComplete, data: generateComplete{result, err}}
}

// publishCompleteMsg is the constructor for [MsgPublishComplete]
func publishCompleteMsg(created []tasks.Published, err error) Msg {
	return Msg{kind: MsgPublishComplete, data: publishComplete{created, err}}
}
