package shared

const (
	Username = "username"

	RankD = "D"
	RankC = "C"
	RankB = "B"
	RankA = "A"
	RankS = "S"

	ConditionOr  = "or"
	ConditionAnd = "and"

	// Presence Sync Service method names.
	SyncAdvance       = "advance"
	SyncBeat          = "beat"
	SyncSecretFound   = "secretFound"
	SyncSecretSolve   = "secretSolve"
	SyncCheevoFound   = "cheevoFound"
	SyncGameCompleted = "gameCompleted"

	// Sentinel value of PlayerRiddleAccount.CurrentLevel once the riddle
	// is beaten. AccountCompletedOrder keeps the monotonic advance guard
	// from ever moving the pointer off the sentinel.
	AccountCompleted      = "completed"
	AccountCompletedOrder = 1 << 30
)

// LevelPoints maps a level rank to the fixed score awarded on completion.
var LevelPoints = map[string]int{
	RankD: 50,
	RankC: 100,
	RankB: 200,
	RankA: 400,
	RankS: 1000,
}

// CheevoPoints maps an achievement rank to the fixed score awarded on unlock.
var CheevoPoints = map[string]int{
	RankD: 25,
	RankC: 50,
	RankB: 100,
	RankA: 200,
	RankS: 500,
}
