// Package align fuses diarization turns and transcript segments into a
// speaker-labeled transcript.
package align

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/samber/lo"

	"speaker-transcriber/internal/domain"
)

// overlapEpsilon absorbs float noise when comparing summed overlaps.
const overlapEpsilon = 1e-9

// Alignment is the output of Align.
type Alignment struct {
	Segments []domain.AlignedSegment
	Speakers map[string][]domain.SpeakerSegment
	Text     string
}

// CanonicalLabel formats the i-th canonical speaker label.
func CanonicalLabel(i int) string {
	return fmt.Sprintf("SPEAKER_%02d", i)
}

// Canonicalize maps engine speaker ids to canonical labels by first appearance.
func Canonicalize(turns []domain.SpeakerTurn) map[string]string {
	order := speakerOrder(sortTurns(turns))
	labels := make(map[string]string, len(order))
	for i, id := range order {
		labels[id] = CanonicalLabel(i)
	}
	return labels
}

// Align assigns every transcript segment to the canonical speaker whose turns
// overlap it the most. Segments with no overlap go to the turn with the
// nearest boundary. With no turns at all, segments stay unattributed.
func Align(turns []domain.SpeakerTurn, segments []domain.TranscriptSegment) Alignment {
	ordered := sortTurns(turns)
	order := speakerOrder(ordered)
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	segs := sortSegments(segments)

	out := Alignment{
		Segments: make([]domain.AlignedSegment, 0, len(segs)),
		Speakers: make(map[string][]domain.SpeakerSegment, len(order)),
	}
	for _, seg := range segs {
		speaker := ""
		if len(ordered) > 0 {
			speaker = CanonicalLabel(assign(seg, ordered, rank))
		}

		out.Segments = append(out.Segments, domain.AlignedSegment{
			Start:   seg.Start,
			End:     seg.End,
			Speaker: speaker,
			Text:    seg.Text,
		})
		if speaker != "" {
			out.Speakers[speaker] = append(out.Speakers[speaker], domain.SpeakerSegment{
				Start: seg.Start,
				End:   seg.End,
				Text:  seg.Text,
			})
		}
	}
	out.Text = FormatText(out.Segments)
	return out
}

// Unattributed converts transcript segments to aligned segments without
// speakers, ordered by start.
func Unattributed(segments []domain.TranscriptSegment) []domain.AlignedSegment {
	return lo.Map(sortSegments(segments), func(seg domain.TranscriptSegment, _ int) domain.AlignedSegment {
		return domain.AlignedSegment{Start: seg.Start, End: seg.End, Text: seg.Text}
	})
}

// FormatText renders aligned segments with a marker line at every speaker change.
func FormatText(segments []domain.AlignedSegment) string {
	var b strings.Builder
	current := ""
	for _, seg := range segments {
		if seg.Speaker != "" && seg.Speaker != current {
			fmt.Fprintf(&b, "\n=== %s ===\n", seg.Speaker)
		}
		current = seg.Speaker
		fmt.Fprintf(&b, "[%.2f-%.2f] %s\n", seg.Start, seg.End, strings.TrimSpace(seg.Text))
	}
	return strings.TrimSpace(b.String())
}

// tally accumulates overlap for one canonical speaker within one segment.
type tally struct {
	rank     int
	overlap  float64
	earliest float64
}

// assign returns the canonical rank chosen for seg. turns must be sorted by start.
func assign(seg domain.TranscriptSegment, turns []domain.SpeakerTurn, rank map[string]int) int {
	tallies := make([]*tally, 0, 4)
	byRank := make(map[int]*tally, 4)
	for _, turn := range turns {
		ov := overlap(seg, turn)
		if ov <= 0 {
			continue
		}
		r := rank[turn.SpeakerID]
		t, ok := byRank[r]
		if !ok {
			// turns are sorted, so the first contributing turn is the earliest
			t = &tally{rank: r, earliest: turn.Start}
			byRank[r] = t
			tallies = append(tallies, t)
		}
		t.overlap += ov
	}

	if len(tallies) == 0 {
		nearest := lo.MinBy(turns, func(a, b domain.SpeakerTurn) bool {
			return boundaryDistance(seg, a) < boundaryDistance(seg, b)
		})
		return rank[nearest.SpeakerID]
	}

	best := tallies[0]
	for _, t := range tallies[1:] {
		if beats(t, best) {
			best = t
		}
	}
	return best.rank
}

// beats reports whether a should win over b: more overlap, then earlier
// contributing turn, then lower canonical rank.
func beats(a, b *tally) bool {
	if diff := a.overlap - b.overlap; math.Abs(diff) > overlapEpsilon {
		return diff > 0
	}
	if a.earliest != b.earliest {
		return a.earliest < b.earliest
	}
	return a.rank < b.rank
}

func overlap(seg domain.TranscriptSegment, turn domain.SpeakerTurn) float64 {
	return math.Max(0, math.Min(seg.End, turn.End)-math.Max(seg.Start, turn.Start))
}

func boundaryDistance(seg domain.TranscriptSegment, turn domain.SpeakerTurn) float64 {
	return math.Min(math.Abs(turn.Start-seg.Start), math.Abs(turn.End-seg.End))
}

// sortTurns returns a copy ordered by start; equal starts keep input order.
func sortTurns(turns []domain.SpeakerTurn) []domain.SpeakerTurn {
	out := slices.Clone(turns)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// sortSegments returns a copy ordered by start; equal starts keep input order.
func sortSegments(segments []domain.TranscriptSegment) []domain.TranscriptSegment {
	out := slices.Clone(segments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// speakerOrder lists speaker ids by first appearance in sorted turns.
func speakerOrder(sorted []domain.SpeakerTurn) []string {
	return lo.Uniq(lo.Map(sorted, func(t domain.SpeakerTurn, _ int) string { return t.SpeakerID }))
}
