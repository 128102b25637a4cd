package usi

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Shogi-bot/internal/obslog"
)

const (
	defaultReadyTimeout  = 10 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond

	// MateScore stands in for "score mate N" in centipawn comparisons.
	MateScore = 30000
)

var (
	ErrSessionClosed = errors.New("usi: session closed")
	ErrNoLimits      = errors.New("usi: no search limits specified")
)

type Options struct {
	Threads int
	HashMB  int
	MultiPV int
}

type Limits struct {
	Depth         int
	ByoyomiMillis int
	NodeCap       int
}

type Candidate struct {
	Move      string
	EvalCP    int
	Mate      bool
	Principal []string
}

type Session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	lines   chan string
	readErr error
	done    chan struct{}
	quit    chan struct{}

	mu     sync.Mutex
	search sync.Mutex
	closed bool
}

// NewSession starts the engine binary and runs the usi/isready handshake.
func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	// the process outlives ctx; Close ends it
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	// engines load eval files relative to their own directory
	cmd.Dir = filepath.Dir(binaryPath)

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := newSession(stdin, stdout)
	s.cmd = cmd
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewSessionFromPipes speaks USI over an already connected engine.
func NewSessionFromPipes(ctx context.Context, stdin io.WriteCloser, stdout io.Reader, opt Options) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	s := newSession(stdin, stdout)
	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(stdin io.WriteCloser, stdout io.Reader) *Session {
	s := &Session{
		stdin: stdin,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
		quit:  make(chan struct{}),
	}
	go s.readLoop(bufio.NewReader(stdout))
	return s
}

func (s *Session) readLoop(r *bufio.Reader) {
	defer close(s.done)
	for {
		line, err := r.ReadString('\n')
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			select {
			case s.lines <- trimmed:
			case <-s.quit:
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

type SearchRequest struct {
	SFEN   string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	Candidates []Candidate
	BestMove   string
	Ponder     string
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	goTokens, err := BuildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}

	positionCmd := BuildPositionCommand(req.SFEN, req.Moves)
	if err := s.send(positionCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Limits))
	defer cancel()

	candidates := make(map[int]Candidate)
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			obslog.L().Warn("usi_search_read_failed",
				zap.String("position", positionCmd),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				_ = s.send("stop\n")
			}
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}

		switch {
		case strings.HasPrefix(line, "info "):
			if mv, cand, ok := ParseInfo(line); ok {
				candidates[mv] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			best, ponder := ParseBestMove(line)
			return SearchResponse{
				Candidates: collapseCandidates(candidates),
				BestMove:   best,
				Ponder:     ponder,
			}, nil
		}
	}
}

// BuildPositionCommand renders a position command. An empty sfen or
// "startpos" selects the standard initial position.
func BuildPositionCommand(sfen string, moves []string) string {
	var sb strings.Builder
	sfen = strings.TrimSpace(sfen)
	if sfen == "" || sfen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position sfen ")
		sb.WriteString(strings.TrimPrefix(sfen, "sfen "))
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

func validateOptions(opt Options) error {
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	if opt.MultiPV <= 0 {
		return fmt.Errorf("multipv must be > 0: %d", opt.MultiPV)
	}
	if opt.Threads < 0 {
		return fmt.Errorf("threads must be >= 0: %d", opt.Threads)
	}
	return nil
}

func BuildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.ByoyomiMillis > 0 {
		args = append(args, "btime", "0", "wtime", "0", "byoyomi", strconv.Itoa(l.ByoyomiMillis))
	}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.NodeCap > 0 {
		args = append(args, "nodes", strconv.Itoa(l.NodeCap))
	}
	if len(args) == 1 {
		return nil, ErrNoLimits
	}
	return args, nil
}

func computeSearchTimeout(l Limits) time.Duration {
	if l.ByoyomiMillis > 0 {
		ms := l.ByoyomiMillis + 2000
		return time.Duration(ms) * time.Millisecond * 3
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 500 * time.Millisecond
		return min(max(base, 6*time.Second), 30*time.Second)
	}
	return 10 * time.Second
}

// ParseInfo extracts the multipv slot and candidate from an info line.
// Lines without a pv are rejected.
func ParseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return 0, Candidate{}, false
	}
	var (
		multipv = 1
		evalCP  int
		mate    bool
		pvIdx   = -1
	)

	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "string":
			return 0, Candidate{}, false
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					multipv = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				switch parts[i+1] {
				case "cp":
					if v, err := strconv.Atoi(parts[i+2]); err == nil {
						evalCP = v
					}
				case "mate":
					mate = true
					evalCP = mateScore(parts[i+2])
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if pvIdx == -1 || pvIdx >= len(parts) {
		return 0, Candidate{}, false
	}
	principal := parts[pvIdx:]
	return multipv, Candidate{
		Move:      principal[0],
		EvalCP:    evalCP,
		Mate:      mate,
		Principal: append([]string(nil), principal...),
	}, true
}

// mateScore maps "mate 5", "mate -3", "mate +" and "mate -" to a signed
// score.
func mateScore(v string) int {
	if strings.HasPrefix(v, "-") {
		return -MateScore
	}
	if n, err := strconv.Atoi(v); err == nil && n < 0 {
		return -MateScore
	}
	return MateScore
}

// ParseBestMove returns the move and optional ponder move of a bestmove
// line. The move may be "resign" or "win".
func ParseBestMove(line string) (string, string) {
	parts := strings.Fields(line)
	var best, ponder string
	if len(parts) >= 2 {
		best = parts[1]
	}
	if len(parts) >= 4 && parts[2] == "ponder" {
		ponder = parts[3]
	}
	return best, ponder
}

func collapseCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	result := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		result = append(result, m[k])
	}
	return result
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("usinewgame\n"); err != nil {
		return fmt.Errorf("send usinewgame: %w", err)
	}

	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		obslog.L().Warn("usi_ready_retry",
			zap.Int("attempt", attempt),
			zap.Int("max", newGameRetryAttempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.quit)

	if s.stdin != nil {
		_, _ = io.WriteString(s.stdin, "quit\n")
		s.stdin.Close()
	}
	if s.cmd == nil {
		return nil
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if err := s.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("usi\n"); err != nil {
		return fmt.Errorf("send usi: %w", err)
	}
	if err := s.awaitToken(initCtx, "usiok"); err != nil {
		return fmt.Errorf("wait usiok: %w", err)
	}

	for _, cmd := range optionCommands(opt) {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func optionCommands(opt Options) []string {
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	return []string{
		fmt.Sprintf("setoption name USI_Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name Threads value %d\n", threads),
		fmt.Sprintf("setoption name MultiPV value %d\n", opt.MultiPV),
		"setoption name USI_Ponder value false\n",
		"setoption name NetworkDelay value 0\n",
		"setoption name NetworkDelay2 value 0\n",
	}
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if line == token || strings.HasPrefix(line, token+" ") {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-s.lines:
		return line, nil
	case <-s.done:
		// drain lines queued before the reader stopped
		select {
		case line := <-s.lines:
			return line, nil
		default:
		}
		if s.readErr != nil && !errors.Is(s.readErr, io.EOF) {
			return "", s.readErr
		}
		return "", io.ErrUnexpectedEOF
	}
}
