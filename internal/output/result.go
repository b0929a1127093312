// Package output provides shared result serialization for the JSON and JSONL
// surfaces of the cmd front-ends.
package output

import (
	"fmt"
	"time"

	"github.com/farcloser/auricula"
	"github.com/farcloser/auricula/internal/rds"
)

// StationToMap converts a station snapshot into the canonical map structure
// used for JSON serialization.
func StationToMap(st rds.Station) map[string]any {
	meta := map[string]any{
		"pi":  fmt.Sprintf("0x%04X", st.PI),
		"ps":  st.PS,
		"pty": st.PTY,
		"tp":  st.TP,
		"ta":  st.TA,
		"ms":  st.MusicSpeech,
	}

	if st.RadioText != "" {
		meta["radiotext"] = st.RadioText
	}

	if st.PTYN != "" {
		meta["ptyn"] = st.PTYN
	}

	if st.LongPS != "" {
		meta["long_ps"] = st.LongPS
	}

	if st.DecoderID != 0 {
		meta["di"] = st.DecoderID
	}

	if st.PIN != 0 {
		meta["pin"] = st.PIN
	}

	if len(st.AF) > 0 {
		meta["af_khz"] = st.AF
	}

	if st.ClockTime != nil {
		meta["clock_utc"] = st.ClockTime.UTC.Format(time.RFC3339)
		meta["clock_offset_minutes"] = int(st.ClockTime.Offset / time.Minute)
	}

	if len(st.ODA) > 0 {
		oda := make([]any, 0, len(st.ODA))

		for _, o := range st.ODA {
			oda = append(oda, map[string]any{
				"aid":        fmt.Sprintf("0x%04X", o.AID),
				"group_type": o.GroupType,
				"version_b":  o.VersionB,
			})
		}

		meta["oda"] = oda
	}

	if len(st.EON) > 0 {
		eon := make([]any, 0, len(st.EON))

		for _, e := range st.EON {
			eon = append(eon, map[string]any{
				"pi": fmt.Sprintf("0x%04X", e.PI),
				"ps": e.PS,
				"tp": e.TrafficProgram,
			})
		}

		meta["eon"] = eon
	}

	return meta
}

// StatusToMap converts a pipeline status snapshot for JSON serialization.
func StatusToMap(status auricula.Status) map[string]any {
	return map[string]any{
		"pilot_locked":      status.PilotLocked,
		"rds_symbol_locked": status.RDSSymbolLocked,
		"rds_group_sync":    status.RDSGroupSync,
		"rds_sync_state":    status.RDSSyncState,
		"pilot_offset_hz":   status.PilotOffsetHz,
		"audio_sample_rate": status.AudioSampleRate,
		"counters": map[string]any{
			"blocks_processed":     status.Counters.BlocksProcessed,
			"rds_blocks_corrected": status.Counters.RDSBlocksCorrected,
			"rds_blocks_dropped":   status.Counters.RDSBlocksDropped,
			"rds_groups":           status.Counters.RDSGroups,
		},
	}
}
