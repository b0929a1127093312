package rds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func apply(db *Database, blocks [4]uint16, times int) {
	for range times {
		db.Apply(blocks)
	}
}

func TestProgramServiceName(t *testing.T) {
	db := NewDatabase()

	const pi = 0x1234

	ps := "TESTFM  "

	// Four index pairs, each transmitted three times (the freshness counter
	// needs two consecutive identical observations).
	for range 3 {
		for addr := range 4 {
			db.Apply([4]uint16{
				pi,
				0 << 12 /* 0A */ | uint16(addr),
				0xE0E0,
				uint16(ps[addr*2])<<8 | uint16(ps[addr*2+1]),
			})
		}
	}

	st, ok := db.Snapshot(pi)
	require.True(t, ok)
	require.Equal(t, "TESTFM  ", st.PS)
}

func TestPSRequiresTwoConsistentObservations(t *testing.T) {
	db := NewDatabase()

	const pi = 0x0042

	db.Apply([4]uint16{pi, 0, 0xE0E0, uint16('A')<<8 | uint16('B')})

	st, _ := db.Snapshot(pi)
	require.Equal(t, "        ", st.PS)

	db.Apply([4]uint16{pi, 0, 0xE0E0, uint16('A')<<8 | uint16('B')})

	st, _ = db.Snapshot(pi)
	require.Equal(t, "AB      ", st.PS)
}

func TestRadioTextToggleFlushesBuffer(t *testing.T) {
	db := NewDatabase()

	const pi = 0x1234

	send2A := func(flag uint16, seg int, chars string) {
		blocks := [4]uint16{
			pi,
			2<<12 | flag<<4 | uint16(seg),
			uint16(chars[0])<<8 | uint16(chars[1]),
			uint16(chars[2])<<8 | uint16(chars[3]),
		}
		apply(db, blocks, 2)
	}

	// "HELLO WORLD\r" at segments 0..2.
	send2A(0, 0, "HELL")
	send2A(0, 1, "O WO")
	send2A(0, 2, "RLD\r")

	st, _ := db.Snapshot(pi)
	require.Equal(t, "HELLO WORLD", st.RadioText)

	// Flip the A/B bit and send "GOODBYE\r".
	send2A(1, 0, "GOOD")
	send2A(1, 1, "BYE\r")

	st, _ = db.Snapshot(pi)
	require.Equal(t, "GOODBYE", st.RadioText)
}

func TestClockTimeGroup(t *testing.T) {
	db := NewDatabase()

	const pi = 0x1234

	// MJD 58849 (2020-01-01), 12:34 UTC, offset +2 half-hours.
	const mjd = 58849

	blocks := [4]uint16{
		pi,
		4<<12 | uint16(mjd>>15)&0x3,
		uint16((mjd&0x7FFF)<<1) | uint16(12>>4),
		uint16(12&0xF)<<12 | uint16(34)<<6 | 2,
	}

	db.Apply(blocks)

	st, ok := db.Snapshot(pi)
	require.True(t, ok)
	require.NotNil(t, st.ClockTime)

	require.Equal(t, time.Date(2020, 1, 1, 12, 34, 0, 0, time.UTC), st.ClockTime.UTC)
	require.Equal(t, time.Hour, st.ClockTime.Offset)
	require.Equal(t, 13, st.ClockTime.Local().Hour())
}

func TestAlternativeFrequencies(t *testing.T) {
	db := NewDatabase()

	const pi = 0x1234

	// Count code for 2 entries, then two carrier codes: 87.6 and 102.2 MHz.
	db.Apply([4]uint16{pi, 0, uint16(afCountBase+2)<<8 | 1, uint16(' ')<<8 | uint16(' ')})
	db.Apply([4]uint16{pi, 0, 147<<8 | afFiller, uint16(' ')<<8 | uint16(' ')})

	st, _ := db.Snapshot(pi)
	require.Equal(t, []int{87600, 102200}, st.AF)
}

func TestODARegistration(t *testing.T) {
	db := NewDatabase()

	const pi = 0x8001

	// RT+ (AID 0x4BD7) carried in group 11A.
	db.Apply([4]uint16{pi, 3<<12 | 11<<1, 0x00C0, 0x4BD7})

	st, _ := db.Snapshot(pi)
	require.Len(t, st.ODA, 1)
	require.Equal(t, uint16(0x4BD7), st.ODA[0].AID)
	require.Equal(t, uint8(11), st.ODA[0].GroupType)
	require.False(t, st.ODA[0].VersionB)
	require.Equal(t, uint64(1), db.GroupCount(3, false))
}

func TestEONCollectsOtherNetwork(t *testing.T) {
	db := NewDatabase()

	const (
		pi   = 0x2222
		piOn = 0x3333
	)

	db.Apply([4]uint16{pi, 14<<12 | 1<<4 | 0, uint16('O')<<8 | uint16('N'), piOn})
	db.Apply([4]uint16{pi, 14<<12 | 1<<4 | 1, uint16('E')<<8 | uint16(' '), piOn})

	st, _ := db.Snapshot(pi)
	require.Len(t, st.EON, 1)
	require.Equal(t, uint16(piOn), st.EON[0].PI)
	require.True(t, st.EON[0].TrafficProgram)
	require.Equal(t, "ONE", st.EON[0].PS[:3])
}

func TestUnknownGroupsAreCounted(t *testing.T) {
	db := NewDatabase()

	db.Apply([4]uint16{0x1111, 13 << 12, 0, 0})
	db.Apply([4]uint16{0x1111, 15<<12 | 1<<11, 0, 0})

	require.Equal(t, uint64(2), db.UnknownGroups())
}

func TestPICodesAreMonotonic(t *testing.T) {
	db := NewDatabase()

	db.Apply([4]uint16{0x1000, 0, 0, 0})
	db.Apply([4]uint16{0x2000, 0, 0, 0})
	require.Equal(t, []uint16{0x1000, 0x2000}, db.PIs())

	// More groups never shrink the key set.
	db.Apply([4]uint16{0x1000, 2 << 12, 0, 0})
	db.Apply([4]uint16{0x3000, 4 << 12, 0, 0})
	require.Equal(t, []uint16{0x1000, 0x2000, 0x3000}, db.PIs())
}

func TestChangeNotifications(t *testing.T) {
	db := NewDatabase()

	const pi = 0x1234

	apply(db, [4]uint16{pi, 0, 0xE0E0, uint16('H')<<8 | uint16('I')}, 2)

	seen := map[Field]bool{}

	for {
		select {
		case ev := <-db.Events():
			require.Equal(t, uint16(pi), ev.PI)
			seen[ev.Field] = true

			continue
		default:
		}

		break
	}

	require.True(t, seen[FieldPS])
}

func TestFlagsAndPTY(t *testing.T) {
	db := NewDatabase()

	const pi = 0x1234

	// 0A with TP, TA, MS set and PTY 10.
	db.Apply([4]uint16{pi, 1<<10 | 10<<5 | 1<<4 | 1<<3, 0xE0E0, 0})

	st, _ := db.Snapshot(pi)
	require.True(t, st.TP)
	require.True(t, st.TA)
	require.True(t, st.MusicSpeech)
	require.Equal(t, uint8(10), st.PTY)
}

func TestDatabaseResetDropsStations(t *testing.T) {
	db := NewDatabase()

	db.Apply([4]uint16{0x1234, 0, 0, 0})
	require.Len(t, db.PIs(), 1)

	db.Reset()
	require.Empty(t, db.PIs())
}
