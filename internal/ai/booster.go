package ai

import (
	"fmt"
	"math/rand/v2"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// BoostKind labels a boost message.
type BoostKind string

const (
	BoostTip          BoostKind = "Tip"
	BoostFunFact      BoostKind = "Fun Fact"
	BoostMotivational BoostKind = "Motivational"
)

// Boost is a short upbeat note about one task.
type Boost struct {
	TaskID  string    `json:"taskId"`
	Kind    BoostKind `json:"type"`
	Content string    `json:"content"`
}

type boostTemplate struct {
	kind BoostKind
	text string
}

var boostTemplates = []boostTemplate{
	{BoostTip, "Break %q into smaller, 15-minute chunks. Your brain loves quick wins and will build momentum naturally."},
	{BoostFunFact, "Did you know? The average person makes 35,000 decisions per day. Finishing %q removes one from tomorrow's list!"},
	{BoostMotivational, "You've got this! Every small step forward is progress. %q is your chance to prove to yourself what you're capable of."},
	{BoostTip, "Try the 2-minute rule on %q: if it can be done in under 2 minutes, do it right now. Future you will thank present you."},
	{BoostFunFact, "Studies show that writing down your tasks makes you 42%% more likely to complete them. Writing down %q already put you ahead!"},
	{BoostMotivational, "Progress, not perfection. %q doesn't need to be perfect, it just needs to be done. You're closer than you think."},
}

// Booster picks canned boost messages.
type Booster struct {
	pick func(n int) int
}

// NewBooster returns a Booster choosing messages at random.
func NewBooster() *Booster {
	return &Booster{pick: rand.IntN}
}

// Boost returns a message tailored with the task title.
func (b *Booster) Boost(task model.Task) Boost {
	tpl := boostTemplates[b.pick(len(boostTemplates))]
	title := task.Title
	if title == "" {
		title = "this task"
	}
	return Boost{
		TaskID:  task.ID,
		Kind:    tpl.kind,
		Content: fmt.Sprintf(tpl.text, title),
	}
}
