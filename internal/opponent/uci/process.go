package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	handshakeTimeout = 4 * time.Second
	mateScore        = 30000
)

var ErrNoBestMove = errors.New("engine returned no bestmove")

// Options are applied once per process with setoption.
type Options struct {
	Threads    int
	HashMB     int
	SkillLevel int
	// Elo > 0 enables UCI_LimitStrength.
	Elo     int
	MultiPV int
}

// Limits bound a single search.
type Limits struct {
	Depth          int
	MoveTimeMillis int
	Nodes          int
}

type Candidate struct {
	Move   string
	EvalCP int
	PV     []string
}

type SearchRequest struct {
	// StartFEN empty means the standard start position.
	StartFEN string
	Moves    []string
	Limits   Limits
}

type SearchResult struct {
	BestMove   string
	Candidates []Candidate
}

// Process is one engine subprocess speaking UCI over stdin/stdout.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger

	writeMu  sync.Mutex
	searchMu sync.Mutex
}

// Start launches binaryPath and completes the uci/isready handshake.
func Start(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Process, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
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
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	p := newProcess(stdin, stdout, logger)
	p.cmd = cmd
	if err := p.handshake(ctx, opt); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func newProcess(stdin io.WriteCloser, stdout io.Reader, logger *zap.Logger) *Process {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{stdin: stdin, stdout: bufio.NewReader(stdout), logger: logger}
}

func (o Options) Validate() error {
	if o.SkillLevel < 0 || o.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", o.SkillLevel)
	}
	if o.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", o.HashMB)
	}
	if o.Elo < 0 {
		return fmt.Errorf("elo must be >= 0: %d", o.Elo)
	}
	if o.MultiPV < 0 || o.MultiPV > 16 {
		return fmt.Errorf("multipv %d out of range 0-16", o.MultiPV)
	}
	return nil
}

func (o Options) key() string {
	return fmt.Sprintf("thr=%d|hash=%d|skill=%d|elo=%d|mpv=%d", o.Threads, o.HashMB, o.SkillLevel, o.Elo, o.MultiPV)
}

// Search sends the position and a go command, then waits for bestmove.
func (p *Process) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	p.searchMu.Lock()
	defer p.searchMu.Unlock()

	goCmd, err := goCommand(req.Limits)
	if err != nil {
		return SearchResult{}, err
	}
	if err := p.send(positionCommand(req.StartFEN, req.Moves)); err != nil {
		return SearchResult{}, fmt.Errorf("send position: %w", err)
	}
	if err := p.send(goCmd); err != nil {
		return SearchResult{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout(req.Limits))
	defer cancel()

	byRank := make(map[int]Candidate)
	for {
		line, err := p.readLine(searchCtx)
		if err != nil {
			p.logger.Warn("uci_search_read_failed", zap.Strings("moves", req.Moves), zap.String("go", goCmd), zap.Error(err))
			_ = p.send("stop")
			return SearchResult{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if rank, cand, ok := parseInfo(line); ok {
				byRank[rank] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			fields := strings.Fields(line)
			if len(fields) < 2 || fields[1] == "(none)" {
				return SearchResult{}, ErrNoBestMove
			}
			return SearchResult{BestMove: fields[1], Candidates: rankedCandidates(byRank)}, nil
		}
	}
}

// NewGame resets engine state between unrelated positions.
func (p *Process) NewGame(ctx context.Context) error {
	if err := p.send("ucinewgame"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	return p.EnsureReady(ctx)
}

func (p *Process) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	if err := p.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := p.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (p *Process) Close() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.stdin != nil {
		_, _ = io.WriteString(p.stdin, "quit\n")
		_ = p.stdin.Close()
	}
	if p.cmd == nil {
		return nil
	}
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func (p *Process) handshake(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := p.send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := p.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, cmd := range setOptionCommands(opt) {
		if err := p.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	if err := p.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := p.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func setOptionCommands(opt Options) []string {
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d", threads),
		fmt.Sprintf("setoption name Hash value %d", opt.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d", opt.SkillLevel),
	}
	if opt.MultiPV > 1 {
		cmds = append(cmds, fmt.Sprintf("setoption name MultiPV value %d", opt.MultiPV))
	}
	if opt.Elo > 0 {
		cmds = append(cmds,
			"setoption name UCI_LimitStrength value true",
			fmt.Sprintf("setoption name UCI_Elo value %d", opt.Elo),
		)
	}
	return cmds
}

func (p *Process) send(line string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := io.WriteString(p.stdin, line+"\n")
	return err
}

func (p *Process) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := p.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (p *Process) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return "", res.err
		}
		return res.line, nil
	}
}

func positionCommand(startFEN string, moves []string) string {
	var sb strings.Builder
	fen := strings.TrimSpace(startFEN)
	if fen == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

func goCommand(l Limits) (string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.Itoa(l.Nodes))
	}
	if len(args) == 1 {
		return "", fmt.Errorf("no search limits specified")
	}
	return strings.Join(args, " "), nil
}

func searchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond*3 + 2*time.Second
	}
	if l.Depth > 0 {
		d := time.Duration(l.Depth) * 300 * time.Millisecond
		if d < 6*time.Second {
			d = 6 * time.Second
		}
		if d > 20*time.Second {
			d = 20 * time.Second
		}
		return d
	}
	return 6 * time.Second
}

// parseInfo extracts (multipv rank, candidate) from an "info ... pv ..." line.
func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	rank := 1
	eval := 0
	pvAt := -1
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					rank = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						eval = v
					case "mate":
						eval = mateScore
						if v < 0 {
							eval = -mateScore
						}
					}
				}
				i += 2
			}
		case "pv":
			pvAt = i + 1
			i = len(parts)
		}
	}
	if pvAt < 0 || pvAt >= len(parts) {
		return 0, Candidate{}, false
	}
	pv := append([]string(nil), parts[pvAt:]...)
	return rank, Candidate{Move: pv[0], EvalCP: eval, PV: pv}, true
}

func rankedCandidates(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	ranks := make([]int, 0, len(m))
	for k := range m {
		ranks = append(ranks, k)
	}
	sort.Ints(ranks)
	out := make([]Candidate, 0, len(ranks))
	for _, k := range ranks {
		out = append(out, m[k])
	}
	return out
}
