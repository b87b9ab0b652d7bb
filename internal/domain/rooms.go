package domain

// Room names. A connection is in its user room for its whole lifetime.

func StreamRoom(streamID string) string {
	return "stream:" + streamID
}

func BroadcastRoom(streamID string) string {
	return "stream:" + streamID + ":broadcast"
}

func CodeRoom(sessionID string) string {
	return "code:" + sessionID
}

func UserRoom(userID string) string {
	return "user:" + userID
}
