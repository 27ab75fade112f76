package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/autoplaylist/internal/models"
)

var (
	_ list.Item = collectionItem{}
	_ list.Item = groupItem{}
)

func checkbox(selected bool) string {
	if selected {
		return "[x]"
	}
	return "[ ]"
}

// collectionItem wraps [models.Collection] to implement [list.Item].
type collectionItem struct {
	collection models.Collection
	selected   bool
}

func (i collectionItem) FilterValue() string { return i.collection.Name }
func (i collectionItem) Title() string {
	return fmt.Sprintf("%s %s", checkbox(i.selected), i.collection.Name)
}
func (i collectionItem) Description() string {
	if i.collection.Kind == models.KindLiked {
		return fmt.Sprintf("%d saved tracks", i.collection.TrackCount)
	}
	return fmt.Sprintf("%d tracks", i.collection.TrackCount)
}

// groupItem is one reviewable group of a run.
type groupItem struct {
	dimension string
	group     models.Group
	selected  bool
}

func (i groupItem) FilterValue() string { return i.group.Name }
func (i groupItem) Title() string {
	return fmt.Sprintf("%s %s", checkbox(i.selected), i.group.Name)
}
func (i groupItem) Description() string {
	return fmt.Sprintf("%s • %d tracks", i.dimension, len(i.group.TrackIDs))
}
