// Package render rasterizes board snapshots to PNG for clients without a
// live surface of their own.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/deskchess/deskchess/internal/domain"
)

const (
	squareSize   = 72
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	margin       = 28
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	highlightOverlay    = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	hoverOverlay        = color.NRGBA{R: 182, G: 184, B: 190, A: 130}
	coordinateTextColor = color.NRGBA{R: 60, G: 48, B: 36, A: 255}
	backgroundColor     = color.RGBA{40, 36, 34, 255}
)

// Options select overlays and orientation for one frame.
type Options struct {
	Highlights []domain.Square
	Hover      *domain.Square
	Flipped    bool
}

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// RenderPNG rasterizes the occupancy with highlight overlays and
// coordinate labels.
func (r *Renderer) RenderPNG(ctx context.Context, occ domain.Occupancy, opts Options) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	total := boardSize + margin*2
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	origin := image.Point{X: margin, Y: margin}

	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)
	drawSquares(img, origin, opts.Flipped)
	for _, sq := range opts.Highlights {
		drawSquareOverlay(img, sq, origin, opts.Flipped, highlightOverlay)
	}
	if opts.Hover != nil {
		drawSquareOverlay(img, *opts.Hover, origin, opts.Flipped, hoverOverlay)
	}
	if err := drawPieces(img, occ, origin, opts.Flipped); err != nil {
		return nil, err
	}
	drawCoordinates(img, origin, opts.Flipped)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareRect maps a square to pixels. Rank 8 sits at the top unless the
// board is flipped.
func squareRect(sq domain.Square, origin image.Point, flipped bool) image.Rectangle {
	col := sq.File
	row := 7 - sq.Rank
	if flipped {
		col = 7 - sq.File
		row = sq.Rank
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(img *image.RGBA, origin image.Point, flipped bool) {
	for rank := 0; rank < boardSquares; rank++ {
		for file := 0; file < boardSquares; file++ {
			sq := domain.Square{File: file, Rank: rank}
			clr := lightSquare
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(img, squareRect(sq, origin, flipped), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawSquareOverlay(img *image.RGBA, sq domain.Square, origin image.Point, flipped bool, clr color.Color) {
	if !sq.Valid() {
		return
	}
	imagedraw.Draw(img, squareRect(sq, origin, flipped), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(img *image.RGBA, occ domain.Occupancy, origin image.Point, flipped bool) error {
	for sq, piece := range occ {
		glyph, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(img, squareRect(sq, origin, flipped), glyph, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawCoordinates(img *image.RGBA, origin image.Point, flipped bool) {
	drawer := &font.Drawer{
		Dst:  img,
		Face: basicfont.Face7x13,
		Src:  image.NewUniform(coordinateTextColor),
	}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()

	for i := 0; i < boardSquares; i++ {
		rankLabel := fmt.Sprintf("%d", 8-i)
		fileLabel := string(rune('a' + i))
		if flipped {
			rankLabel = fmt.Sprintf("%d", i+1)
			fileLabel = string(rune('h' - i))
		}

		rankBaseline := origin.Y + i*squareSize + squareSize/2 + ascent/2
		drawCentered(drawer, rankLabel, origin.X-margin/2, rankBaseline)

		fileCenter := origin.X + i*squareSize + squareSize/2
		drawCentered(drawer, fileLabel, fileCenter, origin.Y+boardSize+ascent+6)
	}
}

func drawCentered(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
