// Package charts renders dashboard results as PNG images with gonum/plot.
//
// Each Renderer method takes the analytics value it draws and an io.Writer.
// Rendering an empty input fails with ErrEmptyData rather than producing a
// blank image.
package charts
