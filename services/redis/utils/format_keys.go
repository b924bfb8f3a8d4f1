package utils

/**
 * This file contains utility functions to format the keys for Redis
 * (key, value) pairs. It avoids having to call "fmt.Sprintf(...)"
 * with the same format string every time, potentially confusing the key layout.
 */

import "fmt"

func FormatRosterSnapshotKey(roomCode string) string {
	return fmt.Sprintf("room:%s:roster", roomCode)
}

func FormatStateSnapshotKey(roomCode string) string {
	return fmt.Sprintf("room:%s:state", roomCode)
}

func FormatPresenceKey(roomCode string) string {
	return fmt.Sprintf("room:%s:presence", roomCode)
}

func FormatPresenceNamesKey(roomCode string) string {
	return fmt.Sprintf("room:%s:presence:names", roomCode)
}

func FormatVotesKey(roomCode string, epoch int, round int, phase int) string {
	return fmt.Sprintf("room:%s:epoch:%d:round:%d:verdict:%d:votes", roomCode, epoch, round, phase)
}

func FormatWhisperKey(roomCode string, epoch int, round int, identity string) string {
	return fmt.Sprintf("room:%s:epoch:%d:round:%d:whisper:%s", roomCode, epoch, round, identity)
}

func FormatPlaceViewersKey(roomCode string, epoch int, round int, placeID uint) string {
	return fmt.Sprintf("room:%s:epoch:%d:round:%d:place:%d", roomCode, epoch, round, placeID)
}

func FormatContentKey(variant int, part string) string {
	return fmt.Sprintf("content:%d:%s", variant, part)
}

func FormatRoomChannel(roomCode string) string {
	return fmt.Sprintf("mobius:room:%s", roomCode)
}

// Pattern matching every room channel, for server-wide fan-out.
const RoomChannelPattern = "mobius:room:*"
