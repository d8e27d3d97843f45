package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/djx/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track    models.Track
	position int
	feedback models.FeedbackAction
}

func (i trackItem) FilterValue() string { return i.track.Name + " " + i.track.Artist }

func (i trackItem) Title() string {
	title := fmt.Sprintf("%2d. %s", i.position, i.track.Name)
	switch i.feedback {
	case models.MoreLikeThis:
		title += " " + styles.ok.Render("+")
	case models.LessLikeThis:
		title += " " + styles.err.Render("-")
	}
	return title
}

func (i trackItem) Description() string {
	desc := i.track.Artist
	if i.track.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Album)
	}
	return fmt.Sprintf("%s • %s", desc, i.track.Duration())
}

func trackItems(tracks []models.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		items[i] = trackItem{track: t, position: i + 1}
	}
	return items
}
