// Package render turns a document's content blocks into email HTML.
//
// Rendering is a single sequential pass over the blocks. The caller owns a
// domain.RenderState for the pass; it tracks the open list container and the
// image sequence used to name relayed images. Nothing in this package keeps
// state between documents.
package render
