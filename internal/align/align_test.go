package align

import (
	"reflect"
	"strings"
	"testing"

	"speaker-transcriber/internal/domain"
)

func turn(start, end float64, id string) domain.SpeakerTurn {
	return domain.SpeakerTurn{Start: start, End: end, SpeakerID: id}
}

func seg(start, end float64, text string) domain.TranscriptSegment {
	return domain.TranscriptSegment{Start: start, End: end, Text: text}
}

// TestAlignTieGoesToEarlierTurn checks equal overlap is broken by turn start.
func TestAlignTieGoesToEarlierTurn(t *testing.T) {
	got := Align(
		[]domain.SpeakerTurn{turn(0, 6, "A"), turn(6, 12, "B")},
		[]domain.TranscriptSegment{seg(4, 8, "straddles")},
	)

	if got.Segments[0].Speaker != "SPEAKER_00" {
		t.Fatalf("speaker = %q, want SPEAKER_00", got.Segments[0].Speaker)
	}
}

// TestAlignTiePrefersEarliestContributingTurnOverRank checks the tie rule
// looks at turns overlapping the segment, not at first appearance overall.
func TestAlignTiePrefersEarliestContributingTurnOverRank(t *testing.T) {
	got := Align(
		[]domain.SpeakerTurn{turn(0, 2, "A"), turn(3, 10, "B"), turn(5, 10, "A")},
		[]domain.TranscriptSegment{seg(6, 10, "both talking")},
	)

	if got.Segments[0].Speaker != "SPEAKER_01" {
		t.Fatalf("speaker = %q, want SPEAKER_01", got.Segments[0].Speaker)
	}
}

// TestAlignGapFillUsesNearestBoundary checks segments without overlap.
func TestAlignGapFillUsesNearestBoundary(t *testing.T) {
	got := Align(
		[]domain.SpeakerTurn{turn(0, 5, "A"), turn(10, 15, "B")},
		[]domain.TranscriptSegment{seg(6, 7, "in the gap")},
	)

	if got.Segments[0].Speaker != "SPEAKER_00" {
		t.Fatalf("speaker = %q, want SPEAKER_00", got.Segments[0].Speaker)
	}
}

// TestAlignSumsOverlapPerSpeaker checks several short turns can outweigh one long one.
func TestAlignSumsOverlapPerSpeaker(t *testing.T) {
	got := Align(
		[]domain.SpeakerTurn{
			turn(0, 2, "x"),
			turn(2, 5, "y"),
			turn(5, 7, "x"),
		},
		[]domain.TranscriptSegment{seg(0, 7, "interleaved")},
	)

	// x overlaps 4s across two turns, y overlaps 3s.
	if got.Segments[0].Speaker != "SPEAKER_00" {
		t.Fatalf("speaker = %q, want SPEAKER_00", got.Segments[0].Speaker)
	}
}

// TestCanonicalizeUsesFirstAppearance checks label order follows turn start.
func TestCanonicalizeUsesFirstAppearance(t *testing.T) {
	labels := Canonicalize([]domain.SpeakerTurn{
		turn(10, 12, "spk_7"),
		turn(0, 3, "spk_2"),
		turn(4, 6, "spk_7"),
		turn(20, 21, "spk_0"),
	})

	want := map[string]string{
		"spk_2": "SPEAKER_00",
		"spk_7": "SPEAKER_01",
		"spk_0": "SPEAKER_02",
	}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}
}

// TestCanonicalizeBreaksStartTiesByInputOrder checks equal starts are stable.
func TestCanonicalizeBreaksStartTiesByInputOrder(t *testing.T) {
	labels := Canonicalize([]domain.SpeakerTurn{turn(1, 2, "b"), turn(1, 3, "a")})

	if labels["b"] != "SPEAKER_00" || labels["a"] != "SPEAKER_01" {
		t.Fatalf("labels = %v", labels)
	}
}

// TestAlignPreservesCountAndOrder checks one output per input in ascending order.
func TestAlignPreservesCountAndOrder(t *testing.T) {
	turns := []domain.SpeakerTurn{turn(0, 4, "a"), turn(4, 9, "b"), turn(9, 20, "a")}
	segments := []domain.TranscriptSegment{
		seg(0, 1.5, "one"),
		seg(1.5, 3, "two"),
		seg(3, 6, "three"),
		seg(6, 6.5, "four"),
		seg(12, 14, "five"),
		seg(25, 26, "six"),
	}

	got := Align(turns, segments)
	if len(got.Segments) != len(segments) {
		t.Fatalf("len = %d, want %d", len(got.Segments), len(segments))
	}
	for i, s := range got.Segments {
		if s.Start != segments[i].Start || s.End != segments[i].End || s.Text != segments[i].Text {
			t.Fatalf("segment %d = %+v, want bounds of %+v", i, s, segments[i])
		}
	}
}

// TestAlignIsIdempotent checks repeated runs produce identical output.
func TestAlignIsIdempotent(t *testing.T) {
	turns := []domain.SpeakerTurn{turn(5, 9, "q"), turn(0, 5, "p"), turn(9, 12, "r"), turn(12, 13, "p")}
	segments := []domain.TranscriptSegment{seg(0, 4, "a"), seg(4, 8, "b"), seg(8, 12.5, "c")}

	first := Align(turns, segments)
	for i := 0; i < 5; i++ {
		again := Align(turns, segments)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}
}

// TestAlignSortsUnorderedSegments checks output is ascending by start.
func TestAlignSortsUnorderedSegments(t *testing.T) {
	got := Align(
		[]domain.SpeakerTurn{turn(0, 10, "a")},
		[]domain.TranscriptSegment{seg(5, 6, "late"), seg(1, 2, "early")},
	)

	if got.Segments[0].Text != "early" || got.Segments[1].Text != "late" {
		t.Fatalf("segments = %+v", got.Segments)
	}
}

// TestAlignBuildsSpeakerMapAndText checks both output views.
func TestAlignBuildsSpeakerMapAndText(t *testing.T) {
	got := Align(
		[]domain.SpeakerTurn{turn(0, 3, "host"), turn(3, 6, "guest"), turn(6, 9, "host")},
		[]domain.TranscriptSegment{
			seg(0, 1.5, " Hello there."),
			seg(1.5, 3, " Welcome."),
			seg(3, 6, " Thanks."),
			seg(6, 9, " Let's begin."),
		},
	)

	host := got.Speakers["SPEAKER_00"]
	if len(host) != 3 || host[2].Text != " Let's begin." {
		t.Fatalf("SPEAKER_00 segments = %+v", host)
	}
	if len(got.Speakers["SPEAKER_01"]) != 1 {
		t.Fatalf("SPEAKER_01 segments = %+v", got.Speakers["SPEAKER_01"])
	}

	want := strings.Join([]string{
		"=== SPEAKER_00 ===",
		"[0.00-1.50] Hello there.",
		"[1.50-3.00] Welcome.",
		"",
		"=== SPEAKER_01 ===",
		"[3.00-6.00] Thanks.",
		"",
		"=== SPEAKER_00 ===",
		"[6.00-9.00] Let's begin.",
	}, "\n")
	if got.Text != want {
		t.Fatalf("text =\n%s\nwant\n%s", got.Text, want)
	}
}

// TestAlignWithoutTurnsLeavesSegmentsUnattributed checks the empty-turn edge case.
func TestAlignWithoutTurnsLeavesSegmentsUnattributed(t *testing.T) {
	got := Align(nil, []domain.TranscriptSegment{seg(0, 1, "solo")})

	if got.Segments[0].Speaker != "" {
		t.Fatalf("speaker = %q, want empty", got.Segments[0].Speaker)
	}
	if len(got.Speakers) != 0 {
		t.Fatalf("speakers = %v, want empty", got.Speakers)
	}
	if got.Text != "[0.00-1.00] solo" {
		t.Fatalf("text = %q", got.Text)
	}
}

// TestFormatVTT checks cue timing and voice tags.
func TestFormatVTT(t *testing.T) {
	got := FormatVTT([]domain.AlignedSegment{
		{Start: 0, End: 1.25, Speaker: "SPEAKER_00", Text: " Hi"},
		{Start: 3661.5, End: 3662, Text: "bye"},
	})

	want := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.250\n<v SPEAKER_00>Hi\n\n" +
		"01:01:01.500 --> 01:01:02.000\nbye\n\n"
	if got != want {
		t.Fatalf("vtt =\n%q\nwant\n%q", got, want)
	}
}
