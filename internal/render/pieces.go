package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const pieceSVGTemplate = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">%s</svg>`

// Piece outlines on a 45x45 grid. FILL, STROKE and DETAIL are replaced per colour.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `
		<rect x="11" y="36" width="23" height="5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 15 36 L 30 36 L 27 22 L 18 22 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="22.5" cy="15" r="6.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.Rook: `
		<rect x="9" y="36" width="27" height="5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<rect x="14" y="17" width="17" height="19" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 11 9 L 15 9 L 15 12 L 20 12 L 20 9 L 25 9 L 25 12 L 30 12 L 30 9 L 34 9 L 34 17 L 11 17 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.Knight: `
		<path d="M 12 39 L 34 39 L 32 24 C 32 14 27 9 20 8 L 18 4 L 16 10 L 10 16 L 8 22 L 13 24 L 18 19 L 20 22 L 14 32 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="16" cy="14" r="1.5" fill="DETAIL" stroke="DETAIL" stroke-width="1"/>`,
	nchess.Bishop: `
		<rect x="10" y="36" width="25" height="4" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 15 35 L 30 35 C 31 26 28 18 22.5 12 C 17 18 14 26 15 35 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="22.5" cy="9" r="3" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 20 25 L 25 25" fill="none" stroke="DETAIL" stroke-width="1.5"/>`,
	nchess.Queen: `
		<rect x="10" y="36" width="25" height="4" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 11 35 L 34 35 L 37 14 L 29 26 L 26 11 L 22.5 25 L 19 11 L 16 26 L 8 14 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="8" cy="12" r="2.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="19" cy="9" r="2.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="26" cy="9" r="2.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<circle cx="37" cy="12" r="2.5" fill="FILL" stroke="STROKE" stroke-width="1.5"/>`,
	nchess.King: `
		<rect x="10" y="36" width="25" height="4" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 12 35 L 33 35 L 35 23 C 35 17 29 15 22.5 21 C 16 15 10 17 10 23 Z" fill="FILL" stroke="STROKE" stroke-width="1.5"/>
		<path d="M 21 5 L 24 5 L 24 9 L 28 9 L 28 12 L 24 12 L 24 18 L 21 18 L 21 12 L 17 12 L 17 9 L 21 9 Z" fill="FILL" stroke="STROKE" stroke-width="1.2"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) (string, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke, detail := "#ffffff", "#000000", "#000000"
	if piece.Color() == nchess.Black {
		fill, detail = "#000000", "#ffffff"
	}
	r := strings.NewReplacer("FILL", fill, "STROKE", stroke, "DETAIL", detail)
	return fmt.Sprintf(pieceSVGTemplate, r.Replace(shape)), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
