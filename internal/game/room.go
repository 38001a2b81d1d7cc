package game

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/picguess/picguess-backend/internal"
)

// Commands delivered through the room mailbox. Every mutation of room
// state, whether it originates from a connection or from a timer, arrives
// as one of these and is applied by the single room goroutine.
type command any

type attachHostCmd struct {
	token string
	conn  internal.Conn
}

type detachHostCmd struct{}

type joinCmd struct {
	playerID string
	name     string
	conn     internal.Conn
}

type leaveCmd struct{ playerID string }

type startGameCmd struct{}

type guessCmd struct {
	playerID string
	text     string
}

type hintElapsedCmd struct {
	round int
	kind  internal.HintKind
}

type closeRoundCmd struct{ round int }

type advanceRoundCmd struct{ round int }

type addAssetCmd struct {
	token string
	asset internal.Asset
	reply chan error
}

type updateSettingsCmd struct {
	token    string
	settings internal.Settings
	reply    chan error
}

type historyCmd struct {
	playerID string
	reply    chan []internal.AnswerRecord
}

// Room is one isolated game session. All state below the mailbox is owned
// by the run goroutine; concurrent guesses, host commands and timer
// firings are serialized there, which makes the per-round duplicate
// check-and-insert atomic by construction.
type Room struct {
	id        string
	hostToken string
	createdAt time.Time
	clock     Clock
	log       zerolog.Logger

	state    internal.RoomState
	settings internal.Settings
	assets   []internal.Asset
	hostConn internal.Conn

	players   map[string]*internal.Player
	joinOrder []string

	round          int
	roundOpen      bool
	roundStartedAt time.Time
	answered       map[string]float64
	timers         *roundTimers
	advanceTimer   *time.Timer

	commands chan command
	done     chan struct{}
	closing  sync.Once
}

func newRoom(id, hostToken string, settings internal.Settings, clock Clock, logger zerolog.Logger) *Room {
	r := &Room{
		id:        id,
		hostToken: hostToken,
		createdAt: clock.Now(),
		clock:     clock,
		log:       logger.With().Str("room", id).Logger(),
		state:     internal.StateSetup,
		settings:  settings,
		players:   make(map[string]*internal.Player),
		answered:  make(map[string]float64),
		commands:  make(chan command, 64),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Room) ID() string           { return r.id }
func (r *Room) HostToken() string    { return r.hostToken }
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// AttachHost binds the host connection, moving the room out of setup.
func (r *Room) AttachHost(token string, conn internal.Conn) {
	r.post(attachHostCmd{token: token, conn: conn})
}

func (r *Room) DetachHost() { r.post(detachHostCmd{}) }

// Join registers a player connection under a caller-generated id.
func (r *Room) Join(playerID, name string, conn internal.Conn) {
	r.post(joinCmd{playerID: playerID, name: name, conn: conn})
}

func (r *Room) Leave(playerID string) { r.post(leaveCmd{playerID: playerID}) }

// StartGame begins play. The transport only routes this for the host
// connection; the room still validates state and assets.
func (r *Room) StartGame() { r.post(startGameCmd{}) }

func (r *Room) SubmitGuess(playerID, text string) {
	r.post(guessCmd{playerID: playerID, text: text})
}

// AddAsset appends an image/answer pair. Allowed only while the room is in
// setup or lobby.
func (r *Room) AddAsset(token string, asset internal.Asset) error {
	reply := make(chan error, 1)
	r.post(addAssetCmd{token: token, asset: asset, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomNotFound
	}
}

// UpdateSettings replaces the room settings. Allowed only while the room is
// in setup or lobby.
func (r *Room) UpdateSettings(token string, settings internal.Settings) error {
	reply := make(chan error, 1)
	r.post(updateSettingsCmd{token: token, settings: settings, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrRoomNotFound
	}
}

// PlayerHistory returns a copy of the player's per-round answer records,
// one record per round played.
func (r *Room) PlayerHistory(playerID string) []internal.AnswerRecord {
	reply := make(chan []internal.AnswerRecord, 1)
	r.post(historyCmd{playerID: playerID, reply: reply})
	select {
	case records := <-reply:
		return records
	case <-r.done:
		return nil
	}
}

// Shutdown stops the room goroutine, cancels pending timers and closes all
// connections. Called by the registry on eviction; idempotent.
func (r *Room) Shutdown() {
	r.closing.Do(func() { close(r.done) })
}

func (r *Room) post(cmd command) {
	select {
	case r.commands <- cmd:
	case <-r.done:
	}
}

func (r *Room) run() {
	for {
		select {
		case cmd := <-r.commands:
			r.dispatch(cmd)
		case <-r.done:
			r.cleanup()
			return
		}
	}
}

func (r *Room) dispatch(cmd command) {
	switch c := cmd.(type) {
	case attachHostCmd:
		r.handleAttachHost(c)
	case detachHostCmd:
		r.handleDetachHost()
	case joinCmd:
		r.handleJoin(c)
	case leaveCmd:
		r.handleLeave(c)
	case startGameCmd:
		r.handleStartGame()
	case guessCmd:
		r.handleGuess(c)
	case hintElapsedCmd:
		r.handleHintElapsed(c)
	case closeRoundCmd:
		r.handleCloseRound(c)
	case advanceRoundCmd:
		r.handleAdvanceRound(c)
	case addAssetCmd:
		c.reply <- r.handleAddAsset(c)
	case updateSettingsCmd:
		c.reply <- r.handleUpdateSettings(c)
	case historyCmd:
		c.reply <- r.handleHistory(c)
	}
}

func (r *Room) cleanup() {
	r.timers.cancel()
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
	}
	if r.hostConn != nil {
		r.hostConn.Close()
	}
	for _, p := range r.players {
		p.Conn.Close()
	}
	r.log.Debug().Msg("room released")
}

// ---------------------------------------------------------------------------
// Lifecycle handlers

func (r *Room) handleAttachHost(c attachHostCmd) {
	if c.token != r.hostToken {
		sendError(c.conn, internal.ErrKindInvalidRequest, "invalid host token")
		return
	}
	r.hostConn = c.conn
	if r.state == internal.StateSetup {
		r.state = internal.StateLobby
		r.log.Info().Msg("host attached, room open for players")
	}
	c.conn.Send(internal.Message[any]{Type: internal.MsgRoomJoined, Data: internal.RoomJoinedData{
		IsHost:   true,
		State:    r.state,
		Settings: r.settings,
		Players:  r.playerSnapshots(),
	}})
}

func (r *Room) handleDetachHost() {
	r.hostConn = nil
	r.log.Warn().Msg("host disconnected, game continues")
	r.broadcast(internal.MsgHostDisconnected, internal.ErrorData{
		Kind:   internal.ErrKindHostLoss,
		Detail: "host disconnected, the game continues",
	})
}

func (r *Room) handleJoin(c joinCmd) {
	switch r.state {
	case internal.StateSetup:
		sendError(c.conn, internal.ErrKindInvalidRequest, "room is not open yet")
		return
	case internal.StateFinished:
		sendError(c.conn, internal.ErrKindInvalidRequest, "game is already over")
		return
	}

	player := &internal.Player{
		ID:          c.playerID,
		DisplayName: internal.ClampDisplayName(c.name),
		JoinedAt:    r.clock.Now(),
		Conn:        c.conn,
	}
	r.players[player.ID] = player
	r.joinOrder = append(r.joinOrder, player.ID)

	r.log.Info().Str("player", player.ID).Str("name", player.DisplayName).Msg("player joined")

	c.conn.Send(internal.Message[any]{Type: internal.MsgRoomJoined, Data: internal.RoomJoinedData{
		PlayerID: player.ID,
		IsHost:   false,
		State:    r.state,
		Settings: r.settings,
		Players:  r.playerSnapshots(),
	}})
	r.broadcast(internal.MsgPlayerList, internal.PlayerListData{
		Players: r.playerSnapshots(),
		Message: player.DisplayName + " joined",
	})

	// Late joiner during a live round: reconstruct the round view,
	// including hints whose threshold has already passed.
	if r.state == internal.StatePlaying && r.roundOpen {
		total := r.settings.RoundDuration()
		elapsed := r.clock.Now().Sub(r.roundStartedAt)
		remaining := max(total-elapsed, 0)
		c.conn.Send(internal.Message[any]{Type: internal.MsgRoundStarted, Data: r.roundStartedData(remaining)})
		for _, kind := range elapsedHints(elapsed, total) {
			c.conn.Send(internal.Message[any]{Type: internal.MsgHint, Data: internal.HintData{
				Kind:  kind,
				Value: r.hintValue(kind),
			}})
		}
	}
}

func (r *Room) handleLeave(c leaveCmd) {
	player, ok := r.players[c.playerID]
	if !ok {
		return
	}
	delete(r.players, c.playerID)
	delete(r.answered, c.playerID)
	r.joinOrder = slices.DeleteFunc(r.joinOrder, func(id string) bool { return id == c.playerID })

	r.log.Info().Str("player", c.playerID).Msg("player left")
	r.broadcast(internal.MsgPlayerList, internal.PlayerListData{
		Players: r.playerSnapshots(),
		Message: player.DisplayName + " left",
	})
}

func (r *Room) handleStartGame() {
	if r.state != internal.StateLobby {
		sendError(r.hostConn, internal.ErrKindInvalidRequest, "game can only be started from the lobby")
		return
	}
	if len(r.assets) == 0 {
		sendError(r.hostConn, internal.ErrKindInvalidRequest, "add at least one image before starting")
		return
	}

	if r.settings.TotalRounds <= 0 || r.settings.TotalRounds > len(r.assets) {
		r.settings.TotalRounds = len(r.assets)
	}
	for _, p := range r.players {
		p.Score = 0
		p.Streak = 0
		p.History = nil
	}

	r.log.Info().Int("rounds", r.settings.TotalRounds).Int("players", len(r.players)).Msg("game started")
	r.broadcast(internal.MsgGameStarted, internal.GameStartedData{
		TotalRounds:     r.settings.TotalRounds,
		RoundDurationMs: r.settings.RoundDurationMs,
		PlayerCount:     len(r.players),
	})
	r.startRound(1)
}

func (r *Room) startRound(round int) {
	r.state = internal.StatePlaying
	r.round = round
	r.roundOpen = true
	r.roundStartedAt = r.clock.Now()
	r.answered = make(map[string]float64)

	total := r.settings.RoundDuration()
	r.timers = scheduleRound(round, total, r.post)

	r.log.Info().Int("round", round).Msg("round started")
	r.broadcast(internal.MsgRoundStarted, r.roundStartedData(total))
}

func (r *Room) handleHintElapsed(c hintElapsedCmd) {
	if r.state != internal.StatePlaying || !r.roundOpen || c.round != r.round {
		return
	}
	r.broadcast(internal.MsgHint, internal.HintData{Kind: c.kind, Value: r.hintValue(c.kind)})
}

func (r *Room) handleCloseRound(c closeRoundCmd) {
	if r.state != internal.StatePlaying || !r.roundOpen || c.round != r.round {
		return
	}
	r.roundOpen = false
	r.timers.cancel()

	// Round-end settlement: players without a qualifying answer lose their
	// streak, and players with no scored guess at all get a catch-up
	// history entry.
	totalMs := r.settings.RoundDurationMs
	for _, id := range r.joinOrder {
		player := r.players[id]
		quality, scored := r.answered[id]
		if !scored {
			player.History = append(player.History, internal.AnswerRecord{
				Round:     r.round,
				Correct:   false,
				ElapsedMs: totalMs,
			})
		}
		if quality < QualifyingQuality {
			player.Streak = 0
		}
	}

	answer := strings.TrimSpace(r.currentAsset().AnswerText)
	r.log.Info().Int("round", r.round).Int("answered", len(r.answered)).Msg("round ended")
	r.broadcast(internal.MsgRoundEnded, internal.RoundEndedData{
		Round:          r.round,
		TotalRounds:    r.settings.TotalRounds,
		Answer:         answer,
		ImageReference: r.currentAsset().Reference,
		Players:        r.playerSnapshots(),
		AnsweredCount:  len(r.answered),
		TotalPlayers:   len(r.players),
	})

	if r.round >= r.settings.TotalRounds {
		r.finishGame()
		return
	}
	r.state = internal.StateRoundResult
	closedRound := r.round
	r.advanceTimer = time.AfterFunc(internal.RoundGracePeriod, func() {
		r.post(advanceRoundCmd{round: closedRound})
	})
}

func (r *Room) handleAdvanceRound(c advanceRoundCmd) {
	if r.state != internal.StateRoundResult || c.round != r.round {
		return
	}
	r.startRound(r.round + 1)
}

func (r *Room) finishGame() {
	r.state = internal.StateFinished
	if r.advanceTimer != nil {
		r.advanceTimer.Stop()
	}

	ranked := r.playerSnapshots()
	var winner *internal.PlayerSnapshot
	if len(ranked) > 0 {
		winner = &ranked[0]
	}
	r.log.Info().Int("players", len(ranked)).Msg("game over")
	r.broadcast(internal.MsgGameOver, internal.GameOverData{
		Players:     ranked,
		Winner:      winner,
		TotalRounds: r.settings.TotalRounds,
	})
}

// ---------------------------------------------------------------------------
// Guess handling

func (r *Room) handleGuess(c guessCmd) {
	if r.state != internal.StatePlaying || !r.roundOpen {
		return
	}
	player, ok := r.players[c.playerID]
	if !ok {
		return
	}

	if _, already := r.answered[c.playerID]; already {
		player.Conn.Send(internal.Message[any]{Type: internal.MsgGuessResult, Data: internal.GuessResultData{
			Correct:         true,
			AlreadyAnswered: true,
			ErrorKind:       internal.ErrKindDuplicateSubmission,
			TotalScore:      player.Score,
			Streak:          player.Streak,
		}})
		return
	}

	quality := MatchQuality(c.text, r.currentAsset().AnswerText)
	if quality == 0 {
		// Wrong guesses go to the submitter only and are unlimited.
		player.Conn.Send(internal.Message[any]{Type: internal.MsgGuessResult, Data: internal.GuessResultData{
			Correct: false,
		}})
		return
	}

	position := len(r.answered)
	r.answered[c.playerID] = quality

	elapsed := r.clock.Now().Sub(r.roundStartedAt)
	points, newStreak := ScoreGuess(quality, elapsed, r.settings.RoundDuration(), player.Streak, position)
	player.Score += points
	player.Streak = newStreak
	player.History = append(player.History, internal.AnswerRecord{
		Round:     r.round,
		Correct:   true,
		Points:    points,
		ElapsedMs: elapsed.Milliseconds(),
		Quality:   quality,
	})

	r.log.Debug().
		Str("player", c.playerID).
		Float64("quality", quality).
		Int("points", points).
		Int("position", position+1).
		Msg("guess scored")

	player.Conn.Send(internal.Message[any]{Type: internal.MsgGuessResult, Data: internal.GuessResultData{
		Correct:    true,
		Points:     points,
		TotalScore: player.Score,
		Position:   position + 1,
		Streak:     newStreak,
		Quality:    quality,
	}})
	r.broadcast(internal.MsgLeaderboardUpdate, internal.LeaderboardData{
		Players:       r.playerSnapshots(),
		AnsweredCount: len(r.answered),
		TotalPlayers:  len(r.players),
	})
}

// ---------------------------------------------------------------------------
// Host edits

func (r *Room) handleAddAsset(c addAssetCmd) error {
	if c.token != r.hostToken {
		return ErrBadHostToken
	}
	if r.state != internal.StateSetup && r.state != internal.StateLobby {
		return ErrRoomNotEditable
	}
	if c.asset.Reference == "" || Normalize(c.asset.AnswerText) == "" {
		return ErrInvalidAsset
	}
	r.assets = append(r.assets, c.asset)
	r.log.Debug().Int("assets", len(r.assets)).Msg("asset added")
	return nil
}

func (r *Room) handleUpdateSettings(c updateSettingsCmd) error {
	if c.token != r.hostToken {
		return ErrBadHostToken
	}
	if r.state != internal.StateSetup && r.state != internal.StateLobby {
		return ErrRoomNotEditable
	}
	if c.settings.RoundDurationMs <= 0 || c.settings.TotalRounds <= 0 {
		return ErrInvalidSettings
	}
	r.settings = c.settings
	return nil
}

func (r *Room) handleHistory(c historyCmd) []internal.AnswerRecord {
	player, ok := r.players[c.playerID]
	if !ok {
		return nil
	}
	return slices.Clone(player.History)
}

// ---------------------------------------------------------------------------
// Snapshots and broadcast helpers

func (r *Room) currentAsset() internal.Asset {
	return r.assets[r.round-1]
}

func (r *Room) roundStartedData(remaining time.Duration) internal.RoundStartedData {
	answer := strings.TrimSpace(r.currentAsset().AnswerText)
	return internal.RoundStartedData{
		Round:          r.round,
		TotalRounds:    r.settings.TotalRounds,
		ImageReference: r.currentAsset().Reference,
		RemainingMs:    remaining.Milliseconds(),
		TotalMs:        r.settings.RoundDurationMs,
		AnswerLength:   utf8.RuneCountInString(answer),
		WordCount:      len(strings.Fields(answer)),
	}
}

func (r *Room) hintValue(kind internal.HintKind) string {
	answer := strings.TrimSpace(r.currentAsset().AnswerText)
	switch kind {
	case internal.HintFirstLetter:
		runes := []rune(answer)
		if len(runes) == 0 {
			return ""
		}
		return string(runes[0])
	case internal.HintWordCount:
		return strconv.Itoa(len(strings.Fields(answer)))
	}
	return ""
}

// playerSnapshots returns players ordered by score descending; ties keep
// join order, which is the single ordering used for leaderboards and the
// final ranking.
func (r *Room) playerSnapshots() []internal.PlayerSnapshot {
	snapshots := make([]internal.PlayerSnapshot, 0, len(r.players))
	for _, id := range r.joinOrder {
		player := r.players[id]
		_, answered := r.answered[id]
		snapshots = append(snapshots, player.Snapshot(answered))
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Score > snapshots[j].Score
	})
	return snapshots
}

func (r *Room) broadcast(msgType string, data any) {
	msg := internal.Message[any]{Type: msgType, Data: data}
	if r.hostConn != nil {
		r.hostConn.Send(msg)
	}
	for _, id := range r.joinOrder {
		r.players[id].Conn.Send(msg)
	}
}

func sendError(conn internal.Conn, kind internal.ErrorKind, detail string) {
	if conn == nil {
		return
	}
	conn.Send(internal.Message[any]{Type: internal.MsgError, Data: internal.ErrorData{
		Kind:   kind,
		Detail: detail,
	}})
}
