package aligner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactMatch(t *testing.T) {
	script := ParseScript(sampleScript)
	a := NewAligner(script)

	events := a.Match("今天天氣很好", true, 0.4)
	if assert.Len(t, events, 1) {
		ev := events[0]
		assert.Equal(t, "今天天氣很好", ev.Source)
		assert.Equal(t, "The weather is nice today", ev.Target)
		assert.InDelta(t, 1.0, ev.Score, 1e-9)
		assert.False(t, ev.LowConfidence)
	}
	assert.Equal(t, 6, a.Cursor())
}

func TestHomophoneTolerance(t *testing.T) {
	script := ParseScript(sampleScript)
	a := NewAligner(script)

	events := a.Match("今天天汽很好", true, 0.4)
	if assert.Len(t, events, 1) {
		ev := events[0]
		assert.Equal(t, "今天天氣很好", ev.Source)
		assert.GreaterOrEqual(t, ev.Score, 0.7)
	}
}

func TestShortQueryReturnsNil(t *testing.T) {
	script := ParseScript(sampleScript)
	a := NewAligner(script)

	events := a.Match("你", true, 0.4)
	assert.Nil(t, events)
	assert.Equal(t, 0, a.Cursor())
	assert.Equal(t, 0, a.ConsecutiveFailures())
}

func TestEmptyScriptAlwaysNil(t *testing.T) {
	script := ParseScript("no script lines here")
	a := NewAligner(script)
	assert.Nil(t, a.Match("今天天氣很好是不是", true, 0.4))
}

// TestGlobalResync covers three unrelated low/no-match queries bringing
// consecutiveFailures to the resync threshold, followed by a fourth call
// (matching a distant line) that falls back to a global search and
// resets the counter.
func TestGlobalResync(t *testing.T) {
	lines := []string{
		"第一句話在這裡出現",
		"第二句話完全不同",
		"第三句接著往下說",
		"第四句距離游標很遠",
		"第五句也是無關內容",
		"第六句繼續填充腳本",
		"第七句維持十行篇幅",
		"第八句接近結尾部分",
		"第九句就是目標句子",
		"第十句結束整份腳本",
	}
	var text string
	for i, l := range lines {
		if i > 0 {
			text += "\n"
		}
		text += l + " ||| line " + string(rune('0'+i))
	}
	script := ParseScript(text)
	a := NewAligner(script)

	// Move the cursor to line-3's end without a confident match. The
	// script is short enough that the window still reaches its end, so the
	// fourth call's global search comes from the failure count alone.
	a.cursor = script.Segments[2].CharEnd

	unrelated := []string{"完全無關的亂碼內容甲", "完全無關的亂碼內容乙", "完全無關的亂碼內容丙"}
	for _, q := range unrelated {
		a.Match(q, true, 0.4)
	}
	assert.GreaterOrEqual(t, a.ConsecutiveFailures(), 3)

	events := a.Match(lines[8], true, 0.4)
	if assert.NotEmpty(t, events) {
		assert.True(t, events[0].IsGlobalResync)
		assert.Equal(t, script.Segments[8].Index, events[0].SegmentIndex)
	}
	assert.Equal(t, 0, a.ConsecutiveFailures())
}

func TestCrossZoneAutoAdvance(t *testing.T) {
	text := "===SPEAKER:A===\n[1] hello ||| 你好\n===SPEAKER:B===\n[2] goodbye ||| 再見"
	script := ParseScript(text)
	a := NewAligner(script)

	// Cursor at the end of "hello" (zone A).
	a.cursor = script.Segments[0].CharEnd

	events := a.Match("goodbye", true, 0.4)
	if assert.Len(t, events, 1) {
		assert.Equal(t, "B", events[0].Speaker)
	}
	assert.Equal(t, 1, a.currentZoneIndex)
}
