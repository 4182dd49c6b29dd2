package aligner

// MatchedLine is one matched-line event emitted by Match.
type MatchedLine struct {
	SegmentIndex   int
	Source         string
	Target         string
	Score          float64
	LowConfidence  bool
	Speaker        string
	IsGlobalResync bool
	CursorPosition int
	ZoneProgress   float64
}

const (
	windowBefore = 20
	windowAfter  = 600

	resyncFailureThreshold = 3
	crossZoneLookahead     = 100
	zoneAdvanceProgress    = 0.95

	minMatchScoreMultiSpeaker  = 6.0
	minMatchScoreSingleSpeaker = 10.0

	thresholdAlignmentMode     = 0.30
	thresholdTranscriptionMode = 0.50
)

// Aligner holds the running-match cursor state for exactly one script
// load. It is owned by one session's Coordinator; it is never shared
// across sessions.
type Aligner struct {
	script *Script

	cursor               int
	consecutiveFailures  int
	lastMatchedSegments  map[int]bool
	currentZoneIndex     int
	zoneFinalSegsMatched map[int]bool

	multiSpeaker bool
}

// NewAligner creates cursor state at script load.
func NewAligner(script *Script) *Aligner {
	return &Aligner{
		script:               script,
		lastMatchedSegments:  make(map[int]bool),
		zoneFinalSegsMatched: make(map[int]bool),
		multiSpeaker:         len(script.Zones) > 1,
	}
}

func (a *Aligner) minMatchScore() float64 {
	if a.multiSpeaker {
		return minMatchScoreMultiSpeaker
	}
	return minMatchScoreSingleSpeaker
}

// Match runs the matching decision and window selection, and (for
// multi-speaker scripts) zone auto-advance. thresholdOverride, when > 0,
// replaces the mode-derived effective_threshold — this lets a caller pin
// a literal threshold without hardcoding it into the aligner's own
// defaults. An empty script always returns nil.
func (a *Aligner) Match(query string, alignmentMode bool, thresholdOverride float64) []MatchedLine {
	if a.script.Empty() {
		return nil
	}
	return a.match(query, alignmentMode, thresholdOverride, false)
}

func (a *Aligner) match(query string, alignmentMode bool, thresholdOverride float64, isRetry bool) []MatchedLine {
	norm := normalize(query)
	runes := []rune(norm)
	if len(runes) < 3 {
		return nil
	}

	fullRunes := []rune(a.script.FullText)
	windowStart, windowEnd, isResync := a.selectWindow(len(fullRunes))

	score, relStart, relEnd := smithWaterman(runes, fullRunes[windowStart:windowEnd])
	globalStart := windowStart + relStart
	globalEnd := windowStart + relEnd

	if score < a.minMatchScore() {
		a.consecutiveFailures++
		return nil
	}

	effectiveThreshold := thresholdOverride
	if effectiveThreshold <= 0 {
		if alignmentMode {
			effectiveThreshold = thresholdAlignmentMode
		} else {
			effectiveThreshold = thresholdTranscriptionMode
		}
	}

	q := len(runes)
	normScore := score / (3.0 * float64(q))
	lowConfidence := normScore < effectiveThreshold

	if lowConfidence {
		a.consecutiveFailures++
		segs := a.segmentsInRange(globalStart, globalEnd)
		return a.buildEvents(segs, normScore, true, isResync, a.cursor)
	}

	// Multi-speaker cross-zone auto-advance: a confident match landing
	// entirely in the next zone's lookahead range advances the zone and
	// retries once.
	if a.multiSpeaker && !isRetry && !isResync {
		zone := a.script.Zones[a.currentZoneIndex]
		if globalStart >= zone.CharEnd && a.currentZoneIndex+1 < len(a.script.Zones) {
			a.currentZoneIndex++
			return a.match(query, alignmentMode, thresholdOverride, true)
		}
	}

	a.consecutiveFailures = 0

	segs := a.segmentsInRange(globalStart, globalEnd)
	var fresh []int
	for _, idx := range segs {
		if !a.lastMatchedSegments[idx] {
			fresh = append(fresh, idx)
		}
	}

	a.cursor = globalEnd
	a.maybeAdvanceZoneOnProgress()

	if len(fresh) == 0 {
		return nil
	}
	for _, idx := range fresh {
		a.lastMatchedSegments[idx] = true
		if a.multiSpeaker {
			zone := a.script.Zones[a.currentZoneIndex]
			if idx == zone.SegEnd-1 {
				a.zoneFinalSegsMatched[idx] = true
			}
		}
	}

	return a.buildEvents(fresh, normScore, false, isResync, a.cursor)
}

func (a *Aligner) selectWindow(fullLen int) (start, end int, resync bool) {
	if a.multiSpeaker {
		zone := a.script.Zones[a.currentZoneIndex]
		start = zone.CharStart
		end = zone.CharEnd + crossZoneLookahead
		if end > fullLen {
			end = fullLen
		}
	} else {
		start = a.cursor - windowBefore
		if start < 0 {
			start = 0
		}
		end = a.cursor + windowAfter
		if end > fullLen {
			end = fullLen
		}
	}

	if start >= end || (!a.multiSpeaker && a.consecutiveFailures >= resyncFailureThreshold) {
		return 0, fullLen, true
	}
	return start, end, false
}

// maybeAdvanceZoneOnProgress is the fallback zone advance: once
// zoneProgress crosses 0.95, advance one zone before returning from the
// current call.
func (a *Aligner) maybeAdvanceZoneOnProgress() {
	if !a.multiSpeaker {
		return
	}
	if a.currentZoneIndex+1 >= len(a.script.Zones) {
		return
	}
	if a.zoneProgress() >= zoneAdvanceProgress {
		a.currentZoneIndex++
	}
}

func (a *Aligner) zoneProgress() float64 {
	if !a.multiSpeaker {
		return 0
	}
	zone := a.script.Zones[a.currentZoneIndex]
	span := zone.CharEnd - zone.CharStart
	if span <= 0 {
		return 1
	}
	progress := float64(a.cursor-zone.CharStart) / float64(span)
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}

func (a *Aligner) segmentsInRange(start, end int) []int {
	seen := make(map[int]bool)
	var out []int
	for k := start; k < end && k < len(a.script.CharToSegment); k++ {
		idx := a.script.CharToSegment[k]
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	return out
}

func (a *Aligner) buildEvents(segIdxs []int, score float64, lowConfidence, isResync bool, cursor int) []MatchedLine {
	var events []MatchedLine
	for _, idx := range segIdxs {
		seg := a.script.Segments[idx]
		events = append(events, MatchedLine{
			SegmentIndex:   idx,
			Source:         seg.Source,
			Target:         seg.Target,
			Score:          score,
			LowConfidence:  lowConfidence,
			Speaker:        seg.Speaker,
			IsGlobalResync: isResync,
			CursorPosition: cursor,
			ZoneProgress:   a.zoneProgress(),
		})
	}
	return events
}

// AdvanceSpeaker and PreviousSpeaker are the manual zone-switch
// operations: reset the cursor to the target zone's start and clear
// consecutiveFailures, lastMatchedSegments, and zoneFinalSegsMatched.
func (a *Aligner) AdvanceSpeaker() bool {
	if !a.multiSpeaker || a.currentZoneIndex+1 >= len(a.script.Zones) {
		return false
	}
	a.currentZoneIndex++
	a.resetToZoneStart()
	return true
}

func (a *Aligner) PreviousSpeaker() bool {
	if !a.multiSpeaker || a.currentZoneIndex == 0 {
		return false
	}
	a.currentZoneIndex--
	a.resetToZoneStart()
	return true
}

func (a *Aligner) resetToZoneStart() {
	a.cursor = a.script.Zones[a.currentZoneIndex].CharStart
	a.consecutiveFailures = 0
	a.lastMatchedSegments = make(map[int]bool)
	a.zoneFinalSegsMatched = make(map[int]bool)
}

// Cursor exposes the current cursor position, mostly for tests.
func (a *Aligner) Cursor() int { return a.cursor }

// ConsecutiveFailures exposes the failure counter, mostly for tests.
func (a *Aligner) ConsecutiveFailures() int { return a.consecutiveFailures }
