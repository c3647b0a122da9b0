// Package projection derives read-only display values from a user snapshot.
package projection

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"todo-app/internal/model"
)

// BadgeLimit is the largest count shown literally in the task badge.
const BadgeLimit = 99

const (
	AvatarPictureBackground     = "#ffffff1c"
	AvatarPlaceholderBackground = "#747474"
	defaultAlt                  = "User"
)

// IncompleteCount returns the number of tasks not yet done.
func IncompleteCount(u *model.User) int {
	if u == nil {
		return 0
	}
	n := 0
	for _, t := range u.Tasks {
		if !t.Done {
			n++
		}
	}
	return n
}

// BadgeLabel formats a count for the task badge. The badge is hidden for zero.
func BadgeLabel(count int) (string, bool) {
	switch {
	case count <= 0:
		return "", false
	case count > BadgeLimit:
		return strconv.Itoa(BadgeLimit) + "+", true
	default:
		return strconv.Itoa(count), true
	}
}

// TaskBadge is BadgeLabel(IncompleteCount(u)).
func TaskBadge(u *model.User) (string, bool) {
	return BadgeLabel(IncompleteCount(u))
}

// Avatar is what the profile button renders.
type Avatar struct {
	Initial    string // empty when no name is set
	PictureURL string
	Background string
	Alt        string
}

// AvatarFor builds the avatar projection of u.
func AvatarFor(u *model.User) Avatar {
	a := Avatar{Background: AvatarPlaceholderBackground, Alt: defaultAlt}
	if u == nil {
		return a
	}

	if name := strings.TrimSpace(u.Name); name != "" {
		r, _ := utf8.DecodeRuneInString(name)
		a.Initial = string(unicode.ToUpper(r))
		a.Alt = name
	}
	if u.ProfilePicture != "" {
		a.PictureURL = u.ProfilePicture
		a.Background = AvatarPictureBackground
	}
	return a
}

// CategoryOf resolves the task's category. A missing or dangling reference reports false.
func CategoryOf(u *model.User, task model.Task) (model.Category, bool) {
	if u == nil || task.CategoryID == "" {
		return model.Category{}, false
	}
	if idx := u.CategoryIndex(task.CategoryID); idx >= 0 {
		return u.Categories[idx], true
	}
	return model.Category{}, false
}

// CategoryByName finds a category by case-insensitive name.
func CategoryByName(u *model.User, name string) (model.Category, bool) {
	name = strings.TrimSpace(name)
	if u == nil || name == "" {
		return model.Category{}, false
	}
	for _, c := range u.Categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return model.Category{}, false
}

// OrderedTasks returns the tasks in display order: insertion order, with done
// tasks moved to the bottom when the doneToBottom setting is on.
func OrderedTasks(u *model.User) []model.Task {
	if u == nil {
		return nil
	}
	tasks := slices.Clone(u.Tasks)
	if u.AppSettings().DoneToBottom {
		slices.SortStableFunc(tasks, func(a, b model.Task) int {
			switch {
			case a.Done == b.Done:
				return 0
			case a.Done:
				return 1
			default:
				return -1
			}
		})
	}
	return tasks
}

// TaskByPosition returns the task shown at 1-based position n of OrderedTasks.
func TaskByPosition(u *model.User, n int) (model.Task, bool) {
	tasks := OrderedTasks(u)
	if n < 1 || n > len(tasks) {
		return model.Task{}, false
	}
	return tasks[n-1], true
}
