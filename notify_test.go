package session_test

import (
	"testing"
	"time"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedShowAppendsInOrder(t *testing.T) {
	feed := session.NewFeed()

	first := feed.ShowSuccess("Welcome Back")
	second := feed.ShowError("Sign In Failed", session.WithMessage("invalid email or password"))

	items := feed.Items()
	require.Len(t, items, 2)
	assert.Equal(t, first, items[0].ID)
	assert.Equal(t, second, items[1].ID)
	assert.NotEqual(t, first, second, "each toast gets a unique id")

	assert.Equal(t, session.ToastSuccess, items[0].Kind)
	assert.Equal(t, session.ToastError, items[1].Kind)
	assert.Equal(t, "invalid email or password", items[1].Message)
}

func TestFeedDefaultDuration(t *testing.T) {
	feed := session.NewFeed()
	feed.ShowInfo("Verification Required")

	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, session.DefaultToastDuration, items[0].Duration)
}

func TestFeedToastOptions(t *testing.T) {
	feed := session.NewFeed()

	pressed := false
	feed.ShowWarning("Signed Out",
		session.WithMessage("The server could not be reached."),
		session.WithDuration(10*time.Second),
		session.WithOnPress(func() { pressed = true }),
	)

	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "The server could not be reached.", items[0].Message)
	assert.Equal(t, 10*time.Second, items[0].Duration)

	require.NotNil(t, items[0].OnPress)
	items[0].OnPress()
	assert.True(t, pressed)
}

func TestFeedRemove(t *testing.T) {
	feed := session.NewFeed()

	keep := feed.ShowSuccess("Welcome Back")
	drop := feed.ShowInfo("Verification Required")

	feed.Remove(drop)

	items := feed.Items()
	require.Len(t, items, 1)
	assert.Equal(t, keep, items[0].ID)

	// Removing an unknown id is a no-op.
	feed.Remove("nope")
	assert.Len(t, feed.Items(), 1)
}

func TestFeedClearAll(t *testing.T) {
	feed := session.NewFeed()
	feed.ShowSuccess("Welcome Back")
	feed.ShowError("Sign In Failed")

	feed.ClearAll()

	assert.Empty(t, feed.Items())
}

func TestFeedSubscribeReceivesSnapshots(t *testing.T) {
	feed := session.NewFeed()

	var snapshots [][]session.Toast
	unsub := feed.Subscribe(func(items []session.Toast) {
		snapshots = append(snapshots, items)
	})

	id := feed.ShowSuccess("Welcome Back")
	feed.Remove(id)

	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[0], 1)
	assert.Empty(t, snapshots[1])

	unsub()
	feed.ShowInfo("Verification Required")
	assert.Len(t, snapshots, 2, "unsubscribed observer receives nothing")
}

func TestFeedItemsReturnsCopy(t *testing.T) {
	feed := session.NewFeed()
	feed.ShowSuccess("Welcome Back")

	items := feed.Items()
	items[0].Title = "mutated"

	assert.Equal(t, "Welcome Back", feed.Items()[0].Title)
}
