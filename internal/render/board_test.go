package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

const afterE4 = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

func TestRenderPNGHighlightsLastMove(t *testing.T) {
	r := NewRenderer(48)
	data, err := r.RenderPNG(context.Background(), afterE4, Options{LastMove: "e2e4", Header: "B00 King's Pawn", Status: "Black to move"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	img := decode(t, data)
	if got := img.Bounds().Dx(); got != 48*8+sideMargin*2 {
		t.Fatalf("unexpected width %d", got)
	}

	lay := layout{squareSize: 48, origin: image.Point{X: sideMargin, Y: topMargin}}
	e2 := lay.squareRect(nchess.E2).Min.Add(image.Pt(2, 2))
	if sameColor(img.At(e2.X, e2.Y), squareColor(nchess.E2)) {
		t.Fatalf("e2 should be highlighted")
	}
	e5 := lay.squareRect(nchess.E5).Min.Add(image.Pt(2, 2))
	if !sameColor(img.At(e5.X, e5.Y), squareColor(nchess.E5)) {
		t.Fatalf("e5 should keep its plain colour")
	}
}

func TestLayoutFlip(t *testing.T) {
	normal := layout{squareSize: 10}
	flipped := layout{squareSize: 10, flip: true}
	if got := normal.squareRect(nchess.A1).Min; got != image.Pt(0, 70) {
		t.Fatalf("a1 should be bottom-left, got %v", got)
	}
	if got := flipped.squareRect(nchess.A1).Min; got != image.Pt(70, 0) {
		t.Fatalf("flipped a1 should be top-right, got %v", got)
	}
	if got := flipped.squareRect(nchess.H8).Min; got != image.Pt(0, 70) {
		t.Fatalf("flipped h8 should be bottom-left, got %v", got)
	}
}

func TestRenderPNGErrors(t *testing.T) {
	r := NewRenderer(32)
	if _, err := r.RenderPNG(context.Background(), "not a fen", Options{}); !errors.Is(err, ErrBadFEN) {
		t.Fatalf("expected ErrBadFEN, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, afterE4, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestParseMove(t *testing.T) {
	from, to, ok := parseMove("e7e8q")
	if !ok || from != nchess.E7 || to != nchess.E8 {
		t.Fatalf("unexpected parse %v %v %v", from, to, ok)
	}
	for _, bad := range []string{"", "e2", "i2e4", "e9e4"} {
		if _, _, ok := parseMove(bad); ok {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestEveryPieceGlyphRenders(t *testing.T) {
	for _, p := range []nchess.Piece{
		nchess.WhiteKing, nchess.WhiteQueen, nchess.WhiteRook, nchess.WhiteBishop, nchess.WhiteKnight, nchess.WhitePawn,
		nchess.BlackKing, nchess.BlackQueen, nchess.BlackRook, nchess.BlackBishop, nchess.BlackKnight, nchess.BlackPawn,
	} {
		img, err := renderPieceImage(p, 40)
		if err != nil {
			t.Fatalf("%v: %v", p, err)
		}
		if img.Bounds().Dx() != 40 {
			t.Fatalf("%v: unexpected size", p)
		}
	}
}
