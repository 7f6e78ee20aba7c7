package v1

import (
	"bytes"
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/hrygo/strawbean/server/auth"
	"github.com/hrygo/strawbean/server/service/command"
	"github.com/hrygo/strawbean/store"
)

// maxFeedItems bounds the number of upcoming reminders in a feed.
const maxFeedItems = 100

// Reminder text is user input, so raw HTML stays disabled.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// GetReminderFeed renders the caller's reminders, soonest first, as RSS.
// GET /api/v1/reminders/feed?token=
func (s *APIV1Service) GetReminderFeed(c echo.Context) error {
	ctx := c.Request().Context()
	ownerID := auth.OwnerID(ctx)

	list, err := s.Reminders.List(ctx, ownerID)
	if err != nil {
		return err
	}
	slices.SortStableFunc(list, func(a, b *store.Reminder) int {
		return cmp.Compare(a.Time, b.Time)
	})
	if len(list) > maxFeedItems {
		list = list[:maxFeedItems]
	}

	baseURL := c.Scheme() + "://" + c.Request().Host
	rss, err := s.buildFeed(baseURL, ownerID, list, time.Now())
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.String(http.StatusOK, rss)
}

func (s *APIV1Service) buildFeed(baseURL, ownerID string, list []*store.Reminder, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       "Reminders for " + ownerID,
		Link:        &feeds.Link{Href: baseURL},
		Description: "Upcoming strawbean reminders",
		Created:     now,
	}

	feed.Items = make([]*feeds.Item, 0, len(list))
	for _, r := range list {
		description, err := s.renderDescription(r)
		if err != nil {
			return "", err
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       fmt.Sprintf("#%d %s", r.DisplayNumber(), r.Name),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/reminders/%d", baseURL, r.DisplayNumber())},
			Id:          r.UID,
			Description: description,
			Created:     r.FireTime(),
			Updated:     time.Unix(r.UpdatedTs, 0),
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", errors.Wrap(err, "failed to render feed")
	}
	return rss, nil
}

// renderDescription renders a reminder's schedule and directive text as HTML.
func (s *APIV1Service) renderDescription(r *store.Reminder) (string, error) {
	when := s.Profile.ParsedLocale().Format(r.FireTime(), s.Profile.Location())
	var src strings.Builder
	fmt.Fprintf(&src, "**%s**", when)
	if r.IsRecurring() {
		fmt.Fprintf(&src, ", every %s", command.FormatInterval(r.Interval()))
	}
	src.WriteString("\n\n> ")
	src.WriteString(r.Content)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src.String()), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render reminder")
	}
	return buf.String(), nil
}
