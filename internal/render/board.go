// Package render draws board snapshots as PNG images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

var ErrBadFEN = errors.New("render: invalid fen")

// Options controls one rendering.
type Options struct {
	// LastMove is a UCI move to highlight, e.g. "e2e4".
	LastMove string
	// Flip draws the board from black's side.
	Flip   bool
	Header string
	Status string
}

type Renderer struct {
	squareSize int
	face       font.Face
}

func NewRenderer(squareSize int) *Renderer {
	if squareSize < 16 {
		squareSize = 64
	}
	return &Renderer{squareSize: squareSize, face: basicfont.Face7x13}
}

const (
	sideMargin    = 28
	topMargin     = 64
	bottomMargin  = 28
	panelHeight   = 26
	panelRadius   = 8
	panelPadX     = 14
	gapToBoard    = 12
	shadowOffsetY = 4
)

var (
	lightSquare            = color.RGBA{233, 207, 163, 255}
	darkSquare             = color.RGBA{187, 136, 96, 255}
	backgroundColor        = color.RGBA{22, 24, 34, 255}
	whiteMoveHighlightFill = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	blackMoveArrow         = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	neutralMoveArrow       = color.NRGBA{R: 182, G: 184, B: 190, A: 140}
	panelColor             = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	statusPanelColor       = color.NRGBA{R: 32, G: 35, B: 52, A: 245}
	shadowColor            = color.NRGBA{0, 0, 0, 50}
	textPrimary            = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textSecondary          = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	coordinateColor        = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// layout maps squares onto pixels for one orientation.
type layout struct {
	squareSize int
	origin     image.Point
	flip       bool
}

func (l layout) boardRect() image.Rectangle {
	size := l.squareSize * 8
	return image.Rect(l.origin.X, l.origin.Y, l.origin.X+size, l.origin.Y+size)
}

func (l layout) cell(sq nchess.Square) (col, row int) {
	col, row = int(sq.File()), 7-int(sq.Rank())
	if l.flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func (l layout) squareRect(sq nchess.Square) image.Rectangle {
	col, row := l.cell(sq)
	x := l.origin.X + col*l.squareSize
	y := l.origin.Y + row*l.squareSize
	return image.Rect(x, y, x+l.squareSize, y+l.squareSize)
}

func (l layout) center(sq nchess.Square) pointF {
	r := l.squareRect(sq)
	return pointF{X: float64(r.Min.X + l.squareSize/2), Y: float64(r.Min.Y + l.squareSize/2)}
}

// RenderPNG draws the position given by fen.
func (r *Renderer) RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	opt, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	board := nchess.NewGame(opt).Position().Board()

	lay := layout{squareSize: r.squareSize, origin: image.Point{X: sideMargin, Y: topMargin}, flip: opts.Flip}
	boardRect := lay.boardRect()
	img := image.NewRGBA(image.Rect(0, 0, boardRect.Dx()+sideMargin*2, boardRect.Dy()+topMargin+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.drawHUD(img, boardRect, opts)
	drawSquares(img, lay)
	if from, to, ok := parseMove(opts.LastMove); ok {
		drawHighlight(img, board, lay, from, to)
	}
	if err := drawPieces(img, board, lay); err != nil {
		return nil, err
	}
	r.drawCoordinates(img, lay)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func allSquares(fn func(sq nchess.Square)) {
	for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
		for file := nchess.FileA; file <= nchess.FileH; file++ {
			fn(nchess.NewSquare(file, rank))
		}
	}
}

func drawSquares(dst imagedraw.Image, lay layout) {
	allSquares(func(sq nchess.Square) {
		imagedraw.Draw(dst, lay.squareRect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	})
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, lay layout) error {
	boardMap := board.SquareMap()
	for sq, piece := range boardMap {
		if piece == nchess.NoPiece {
			continue
		}
		glyph, err := renderPieceImage(piece, lay.squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, lay.squareRect(sq), glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawHighlight shades the squares of a white move and draws an arrow for a black one.
func drawHighlight(img *image.RGBA, board *nchess.Board, lay layout, from, to nchess.Square) {
	mover := board.Piece(to)
	if mover == nchess.NoPiece {
		mover = board.Piece(from)
	}
	switch {
	case mover != nchess.NoPiece && mover.Color() == nchess.White:
		drawSquareOverlay(img, lay.squareRect(from), whiteMoveHighlightFill)
		drawSquareOverlay(img, lay.squareRect(to), whiteMoveHighlightFill)
	case mover != nchess.NoPiece && mover.Color() == nchess.Black:
		drawArrow(img, lay, from, to, blackMoveArrow)
	default:
		drawArrow(img, lay, from, to, neutralMoveArrow)
	}
}

func drawSquareOverlay(img *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawArrow(img *image.RGBA, lay layout, from, to nchess.Square, clr color.Color) {
	if from == to {
		return
	}
	start, end := lay.center(from), lay.center(to)
	dx, dy := end.X-start.X, end.Y-start.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	size := float64(lay.squareSize)
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	baseLength := length - size*0.45
	if baseLength < size*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := size * 0.18
	headWidth := size * 0.32
	base := pointF{X: start.X + dirX*baseLength, Y: start.Y + dirY*baseLength}

	offset := func(p pointF, w float64) pointF {
		return pointF{X: p.X + perpX*w, Y: p.Y + perpY*w}
	}
	fillQuad(img, offset(start, -halfWidth), offset(start, halfWidth), offset(base, halfWidth), offset(base, -halfWidth), clr)
	fillTriangle(img, end, offset(base, -headWidth/2), offset(base, headWidth/2), clr)
}

func (r *Renderer) drawHUD(img *image.RGBA, boardRect image.Rectangle, opts Options) {
	header := strings.TrimSpace(opts.Header)
	status := strings.TrimSpace(opts.Status)
	if header == "" && status == "" {
		return
	}
	drawer := &font.Drawer{Dst: img, Face: r.face}
	bottom := boardRect.Min.Y - gapToBoard
	top := bottom - panelHeight

	if status != "" {
		width := drawer.MeasureString(status).Round() + panelPadX*2
		if limit := boardRect.Dx() / 2; width > limit {
			width = limit
			status = truncateWithEllipsis(r.face, status, width-panelPadX*2)
		}
		rect := image.Rect(boardRect.Max.X-width, top, boardRect.Max.X, bottom)
		drawRoundedPanel(img, rect.Add(image.Pt(0, shadowOffsetY)), panelRadius, shadowColor)
		drawRoundedPanel(img, rect, panelRadius, statusPanelColor)
		drawCenteredString(drawer, rect, status, textSecondary)
		boardRect.Max.X = rect.Min.X - gapToBoard
	}
	if header != "" {
		width := drawer.MeasureString(header).Round() + panelPadX*2
		if limit := boardRect.Dx(); width > limit {
			width = limit
			header = truncateWithEllipsis(r.face, header, width-panelPadX*2)
		}
		rect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+width, bottom)
		drawRoundedPanel(img, rect.Add(image.Pt(0, shadowOffsetY)), panelRadius, shadowColor)
		drawRoundedPanel(img, rect, panelRadius, panelColor)
		drawCenteredString(drawer, rect, header, textPrimary)
	}
}

func (r *Renderer) drawCoordinates(dst imagedraw.Image, lay layout) {
	drawer := &font.Drawer{Dst: dst, Face: r.face, Src: image.NewUniform(coordinateColor)}
	ascent := r.face.Metrics().Ascent.Ceil()
	boardRect := lay.boardRect()

	for i := 0; i < 8; i++ {
		rank := nchess.Rank(i)
		_, row := lay.cell(nchess.NewSquare(nchess.FileA, rank))
		y := boardRect.Min.Y + row*lay.squareSize + lay.squareSize/2 + ascent/2
		drawCenteredText(drawer, rank.String(), boardRect.Min.X-sideMargin/2, y)

		file := nchess.File(i)
		col, _ := lay.cell(nchess.NewSquare(file, nchess.Rank1))
		x := boardRect.Min.X + col*lay.squareSize + lay.squareSize/2
		drawCenteredText(drawer, file.String(), x, boardRect.Max.Y+ascent+2)
	}
}

// parseMove reads the squares of a UCI move like "e7e8q".
func parseMove(uci string) (from, to nchess.Square, ok bool) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if len(uci) < 4 {
		return 0, 0, false
	}
	from, ok1 := parseSquare(uci[:2])
	to, ok2 := parseSquare(uci[2:4])
	return from, to, ok1 && ok2
}

func parseSquare(s string) (nchess.Square, bool) {
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return 0, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}
