// Package aligner parses a bilingual script and matches noisy ASR output
// against it with a homophone-tolerant Smith-Waterman local alignment.
package aligner

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Segment is one parsed script line. CharStart/CharEnd are rune offsets
// into Script.FullText (and therefore into Script.CharToSegment), not byte
// offsets — FullText routinely holds multi-byte CJK runes, and the matcher
// indexes by rune position.
type Segment struct {
	Index      int
	Source     string
	Target     string
	Normalized string
	CharStart  int
	CharEnd    int
	Speaker    string
}

// Zone is one contiguous speaker run. In single-speaker
// scripts, exactly one synthetic zone spans the whole script. CharStart/
// CharEnd are rune offsets, matching Segment.
type Zone struct {
	CharStart    int
	CharEnd      int
	Speaker      string
	SegStart     int
	SegEnd       int // exclusive
}

// Script is the parsed, immutable form of a loaded bilingual script.
// CharToSegment maps a rune offset into FullText to the segment index that
// rune belongs to; len(CharToSegment) == utf8.RuneCountInString(FullText).
type Script struct {
	Segments      []Segment
	FullText      string
	CharToSegment []int
	Zones         []Zone
}

var (
	numberingPrefix = regexp.MustCompile(`^\s*(\[\d+\]|\(\d+\)|\d+\.)\s*`)
	speakerHeader   = regexp.MustCompile(`^===SPEAKER:(.+)===$`)
)

// asciiPunct and fullWidthPunct are the fixed punctuation sets normalize
// strips.
const asciiPunct = " \t\r\n,.!?;:'\"()[]{}<>-_=+*/\\|~`@#$%^&"
const fullWidthPunct = "，。！？；：「」『』（）【】《》、·—…‧"

// normalize strips whitespace and the fixed punctuation set, preserving
// Chinese and English letters and digits.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(asciiPunct, r) || strings.ContainsRune(fullWidthPunct, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseScript parses the UTF-8 text blob format:
// `<source> ||| <target>` lines, optional leading numbering, optional
// `===SPEAKER:<name>===` zone headers. Lines without "|||" outside a
// speaker header are ignored. An empty or header-only script yields a
// Script with zero segments — callers decide what that means, ParseScript
// never errors.
func ParseScript(text string) *Script {
	lines := strings.Split(text, "\n")

	var segments []Segment
	var fullText strings.Builder
	var charToSegment []int
	var zones []Zone

	currentSpeaker := ""
	zoneStartChar := 0
	zoneStartSeg := 0
	hasSpeakers := false
	runeLen := 0

	flushZone := func(endChar int, endSeg int) {
		if endSeg <= zoneStartSeg {
			return
		}
		zones = append(zones, Zone{
			CharStart: zoneStartChar,
			CharEnd:   endChar,
			Speaker:   currentSpeaker,
			SegStart:  zoneStartSeg,
			SegEnd:    endSeg,
		})
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := speakerHeader.FindStringSubmatch(trimmed); m != nil {
			flushZone(runeLen, len(segments))
			hasSpeakers = true
			currentSpeaker = strings.TrimSpace(m[1])
			zoneStartChar = runeLen
			zoneStartSeg = len(segments)
			continue
		}
		parts := strings.SplitN(trimmed, "|||", 2)
		if len(parts) != 2 {
			continue
		}
		source := numberingPrefix.ReplaceAllString(strings.TrimSpace(parts[0]), "")
		target := strings.TrimSpace(parts[1])
		norm := normalize(source)

		start := runeLen
		fullText.WriteString(norm)
		runeLen += utf8.RuneCountInString(norm)
		end := runeLen

		idx := len(segments)
		segments = append(segments, Segment{
			Index:      idx,
			Source:     source,
			Target:     target,
			Normalized: norm,
			CharStart:  start,
			CharEnd:    end,
			Speaker:    currentSpeaker,
		})
		for k := start; k < end; k++ {
			charToSegment = append(charToSegment, idx)
		}
	}
	flushZone(runeLen, len(segments))

	if !hasSpeakers && len(segments) > 0 {
		zones = []Zone{{
			CharStart: 0,
			CharEnd:   runeLen,
			Speaker:   "",
			SegStart:  0,
			SegEnd:    len(segments),
		}}
	}

	return &Script{
		Segments:      segments,
		FullText:      fullText.String(),
		CharToSegment: charToSegment,
		Zones:         zones,
	}
}

// Empty reports whether this script has no segments.
func (s *Script) Empty() bool {
	return s == nil || len(s.Segments) == 0
}
