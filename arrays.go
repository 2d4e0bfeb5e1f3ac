// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vitagl

import (
	"encoding/binary"
	"math"
	"slices"

	"github.com/gogpu/vitagl/driver"
)

// clientArray is a vertex array descriptor. Its source is either host
// data or, when buffer is set, offset bytes into that buffer object.
type clientArray struct {
	size    int
	typ     Type
	stride  int
	data    []byte
	buffer  Buffer
	offset  int
	enabled bool
}

func (a *clientArray) elemSize() int { return a.size * a.typ.Size() }

func (a *clientArray) pitch() int {
	if a.stride > 0 {
		return a.stride
	}
	return a.elemSize()
}

// mappedArrays are application-packed streams consumed by DrawObjects.
type mappedArrays struct {
	vertex   []byte // float32 xyz
	color    []byte // float32 rgba
	texcoord []byte // float32 st
	indices  []byte // uint16
	attribs  [MaxVertexAttribs][]byte
}

// setPointer validates and stores a client array. A nonzero buf makes
// offset relative to that buffer.
func (c *Context) setPointer(op string, a *clientArray, size int, sizes []int, typ Type, types []Type, stride int, data []byte, buf Buffer, offset int) error {
	if !slices.Contains(types, typ) {
		return c.failf(op, ErrInvalidEnum, "type %d", typ)
	}
	if !slices.Contains(sizes, size) {
		return c.failf(op, ErrInvalidValue, "size %d", size)
	}
	if stride < 0 || offset < 0 {
		return c.failf(op, ErrInvalidValue, "stride %d offset %d", stride, offset)
	}
	a.size, a.typ, a.stride = size, typ, stride
	a.data, a.buffer, a.offset = data, buf, offset
	return nil
}

func (c *Context) boundArrayBuffer(op string) (Buffer, error) {
	if c.arrayBuffer == 0 {
		return 0, c.failf(op, ErrInvalidOperation, "no array buffer bound")
	}
	return c.arrayBuffer, nil
}

var (
	floatOnly    = []Type{Float}
	floatOrBytes = []Type{Float, UnsignedByte}
	attribSizes  = []int{1, 2, 3, 4}
)

// VertexPointer sets the position array of the client unit from host data.
func (c *Context) VertexPointer(size int, typ Type, stride int, data []byte) error {
	return c.setPointer("VertexPointer", &c.units[c.clientUnit].vertex, size, []int{2, 3}, typ, floatOnly, stride, data, 0, 0)
}

// VertexPointerOffset sets the position array to offset bytes into the
// bound array buffer.
func (c *Context) VertexPointerOffset(size int, typ Type, stride, offset int) error {
	const op = "VertexPointer"
	buf, err := c.boundArrayBuffer(op)
	if err != nil {
		return err
	}
	return c.setPointer(op, &c.units[c.clientUnit].vertex, size, []int{2, 3}, typ, floatOnly, stride, nil, buf, offset)
}

// ColorPointer sets the color array of the client unit from host data.
func (c *Context) ColorPointer(size int, typ Type, stride int, data []byte) error {
	return c.setPointer("ColorPointer", &c.units[c.clientUnit].color, size, []int{3, 4}, typ, floatOrBytes, stride, data, 0, 0)
}

// ColorPointerOffset sets the color array to offset bytes into the bound
// array buffer.
func (c *Context) ColorPointerOffset(size int, typ Type, stride, offset int) error {
	const op = "ColorPointer"
	buf, err := c.boundArrayBuffer(op)
	if err != nil {
		return err
	}
	return c.setPointer(op, &c.units[c.clientUnit].color, size, []int{3, 4}, typ, floatOrBytes, stride, nil, buf, offset)
}

// TexCoordPointer sets the texture coordinate array of the client unit.
func (c *Context) TexCoordPointer(size int, typ Type, stride int, data []byte) error {
	return c.setPointer("TexCoordPointer", &c.units[c.clientUnit].texcoord, size, []int{2}, typ, floatOnly, stride, data, 0, 0)
}

// TexCoordPointerOffset sets the texture coordinate array to offset bytes
// into the bound array buffer.
func (c *Context) TexCoordPointerOffset(size int, typ Type, stride, offset int) error {
	const op = "TexCoordPointer"
	buf, err := c.boundArrayBuffer(op)
	if err != nil {
		return err
	}
	return c.setPointer(op, &c.units[c.clientUnit].texcoord, size, []int{2}, typ, floatOnly, stride, nil, buf, offset)
}

// EnableClientState enables a client array of the client unit.
func (c *Context) EnableClientState(s ClientState) error { return c.clientState("EnableClientState", s, true) }

// DisableClientState disables a client array of the client unit.
func (c *Context) DisableClientState(s ClientState) error {
	return c.clientState("DisableClientState", s, false)
}

func (c *Context) clientState(op string, s ClientState, on bool) error {
	u := &c.units[c.clientUnit]
	switch s {
	case VertexArray:
		u.vertex.enabled = on
	case ColorArray:
		u.color.enabled = on
	case TextureCoordArray:
		u.texcoord.enabled = on
	default:
		return c.failf(op, ErrInvalidEnum, "client state %d", s)
	}
	return nil
}

// ClientActiveTexture selects the unit whose client arrays are addressed
// by the pointer calls and consumed by draws.
func (c *Context) ClientActiveTexture(unit int) error {
	if unit < 0 || unit >= MaxTextureUnits {
		return c.failf("ClientActiveTexture", ErrInvalidEnum, "unit %d", unit)
	}
	c.clientUnit = unit
	return nil
}

// VertexAttribPointer sets generic attribute array index from host data.
func (c *Context) VertexAttribPointer(index, size int, typ Type, stride int, data []byte) error {
	const op = "VertexAttribPointer"
	if index < 0 || index >= MaxVertexAttribs {
		return c.failf(op, ErrInvalidValue, "attribute %d", index)
	}
	return c.setPointer(op, &c.attribs[index], size, attribSizes, typ, floatOrBytes, stride, data, 0, 0)
}

// VertexAttribPointerOffset sets generic attribute array index to offset
// bytes into the bound array buffer.
func (c *Context) VertexAttribPointerOffset(index, size int, typ Type, stride, offset int) error {
	const op = "VertexAttribPointer"
	if index < 0 || index >= MaxVertexAttribs {
		return c.failf(op, ErrInvalidValue, "attribute %d", index)
	}
	buf, err := c.boundArrayBuffer(op)
	if err != nil {
		return err
	}
	return c.setPointer(op, &c.attribs[index], size, attribSizes, typ, floatOrBytes, stride, nil, buf, offset)
}

// EnableVertexAttribArray enables generic attribute array index.
func (c *Context) EnableVertexAttribArray(index int) error {
	return c.attribState("EnableVertexAttribArray", index, true)
}

// DisableVertexAttribArray disables generic attribute array index.
func (c *Context) DisableVertexAttribArray(index int) error {
	return c.attribState("DisableVertexAttribArray", index, false)
}

func (c *Context) attribState(op string, index int, on bool) error {
	if index < 0 || index >= MaxVertexAttribs {
		return c.failf(op, ErrInvalidValue, "attribute %d", index)
	}
	c.attribs[index].enabled = on
	return nil
}

// VertexPointerMapped sets packed float32 xyz positions for DrawObjects.
func (c *Context) VertexPointerMapped(data []byte) { c.mapped.vertex = data }

// ColorPointerMapped sets packed float32 rgba colors for DrawObjects.
// Nil disables the color stream.
func (c *Context) ColorPointerMapped(data []byte) { c.mapped.color = data }

// TexCoordPointerMapped sets packed float32 st coordinates for
// DrawObjects. Nil disables texturing of mapped draws.
func (c *Context) TexCoordPointerMapped(data []byte) { c.mapped.texcoord = data }

// IndexPointerMapped sets the uint16 index list of DrawObjects.
func (c *Context) IndexPointerMapped(data []byte) { c.mapped.indices = data }

// VertexAttribPointerMapped sets a packed generic attribute stream for
// DrawObjects with a custom program.
func (c *Context) VertexAttribPointerMapped(index int, data []byte) error {
	if index < 0 || index >= MaxVertexAttribs {
		return c.failf("VertexAttribPointerMapped", ErrInvalidValue, "attribute %d", index)
	}
	c.mapped.attribs[index] = data
	return nil
}

// arraySource returns the bytes an array reads from, starting at its
// first element.
func (c *Context) arraySource(a *clientArray) ([]byte, bool) {
	if a.buffer == 0 {
		return a.data, true
	}
	b := c.buffers.Ptr(a.buffer.handle())
	if b == nil || b.block.IsZero() || a.offset > b.size {
		return nil, false
	}
	return b.block.Bytes()[a.offset:b.size], true
}

// fixedStream produces n vertices starting at first of a as packed
// float32 vectors of comps components. Missing components default to 0,
// alpha to 1. Tightly packed matching buffer data is bound in place.
func (c *Context) fixedStream(op string, a *clientArray, first, n, comps int) ([]byte, error) {
	src, ok := c.arraySource(a)
	if !ok {
		return nil, c.failf(op, ErrInvalidOperation, "array buffer %d has no storage", a.buffer)
	}
	stride, elem := a.pitch(), a.elemSize()
	if n > 0 && (first+n-1)*stride+elem > len(src) {
		return nil, c.failf(op, ErrInvalidValue, "array of %d bytes too short for %d vertices", len(src), first+n)
	}
	tight := a.typ == Float && a.size == comps && stride == elem
	if tight && a.buffer != 0 {
		return src[first*stride : (first+n)*stride], nil
	}

	out, err := c.floats(n * comps)
	if err != nil {
		return nil, err
	}
	if tight {
		copy(out.Bytes(), src[first*stride:(first+n)*stride])
		return out.Bytes(), nil
	}
	cs := a.typ.Size()
	for i := range n {
		base := (first + i) * stride
		for k := range comps {
			v := float32(0)
			switch {
			case k < a.size && a.typ == Float:
				v = math.Float32frombits(binary.LittleEndian.Uint32(src[base+k*cs:]))
			case k < a.size:
				v = float32(src[base+k]) / 255
			case k == 3:
				v = 1
			}
			out.Set(i*comps+k, v)
		}
	}
	return out.Bytes(), nil
}

// rawStream produces n vertices of a verbatim at their natural element
// size, for custom programs.
func (c *Context) rawStream(op string, a *clientArray, first, n int) ([]byte, error) {
	src, ok := c.arraySource(a)
	if !ok {
		return nil, c.failf(op, ErrInvalidOperation, "array buffer %d has no storage", a.buffer)
	}
	stride, elem := a.pitch(), a.elemSize()
	if n > 0 && (first+n-1)*stride+elem > len(src) {
		return nil, c.failf(op, ErrInvalidValue, "array of %d bytes too short for %d vertices", len(src), first+n)
	}
	if stride == elem && a.buffer != 0 {
		return src[first*stride : (first+n)*stride], nil
	}
	s, err := c.poolAlloc(n*elem, 4)
	if err != nil {
		return nil, err
	}
	out := s.Bytes()
	if stride == elem {
		copy(out, src[first*stride:(first+n)*stride])
		return out, nil
	}
	for i := range n {
		copy(out[i*elem:(i+1)*elem], src[(first+i)*stride:])
	}
	return out, nil
}

// arrayDraw describes the vertex range and index list of an array draw.
type arrayDraw struct {
	op    string
	info  primInfo
	first int
	// vertices is the number of vertices read from the arrays.
	vertices int
	// indices is nil for DrawArrays.
	indices []uint32
	// native, when set, is an index list that can be bound unchanged.
	native []byte
	format driver.IndexFormat
	count  int
}

// DrawArrays draws count vertices starting at first from the enabled
// arrays.
func (c *Context) DrawArrays(prim Primitive, first, count int) error {
	const op = "DrawArrays"
	info, ok := prim.info()
	if !ok {
		return c.failf(op, ErrInvalidEnum, "primitive %d", prim)
	}
	if first < 0 || !info.validCount(count) {
		return c.failf(op, ErrInvalidValue, "first %d count %d for %v", first, count, prim)
	}
	return c.drawArrays(&arrayDraw{op: op, info: info, first: first, vertices: count})
}

// DrawElements draws count indices of type typ read from host memory.
func (c *Context) DrawElements(prim Primitive, count int, typ Type, indices []byte) error {
	return c.drawElements("DrawElements", prim, count, typ, indices, false)
}

// DrawElementsOffset draws count indices read offset bytes into the bound
// element array buffer.
func (c *Context) DrawElementsOffset(prim Primitive, count int, typ Type, offset int) error {
	const op = "DrawElements"
	if c.elementBuffer == 0 {
		return c.failf(op, ErrInvalidOperation, "no element array buffer bound")
	}
	b := c.buffers.Ptr(c.elementBuffer.handle())
	if b == nil || b.block.IsZero() || offset < 0 || offset > b.size {
		return c.failf(op, ErrInvalidValue, "offset %d outside element buffer", offset)
	}
	return c.drawElements(op, prim, count, typ, b.block.Bytes()[offset:b.size], true)
}

func (c *Context) drawElements(op string, prim Primitive, count int, typ Type, src []byte, gpu bool) error {
	info, ok := prim.info()
	if !ok {
		return c.failf(op, ErrInvalidEnum, "primitive %d", prim)
	}
	if typ != UnsignedByte && typ != UnsignedShort && typ != UnsignedInt {
		return c.failf(op, ErrInvalidEnum, "index type %d", typ)
	}
	if !info.validCount(count) {
		return c.failf(op, ErrInvalidValue, "count %d for %v", count, prim)
	}
	size := typ.Size()
	if len(src) < count*size {
		return c.failf(op, ErrInvalidValue, "%d index bytes for %d indices", len(src), count)
	}

	// One scan finds the referenced vertex range.
	idx := make([]uint32, count)
	maxIndex := uint32(0)
	for i := range idx {
		switch typ {
		case UnsignedByte:
			idx[i] = uint32(src[i])
		case UnsignedShort:
			idx[i] = uint32(binary.LittleEndian.Uint16(src[i*2:]))
		default:
			idx[i] = binary.LittleEndian.Uint32(src[i*4:])
		}
		maxIndex = max(maxIndex, idx[i])
	}

	d := &arrayDraw{op: op, info: info, vertices: int(maxIndex) + 1, indices: idx, count: count, format: driver.IndexU16}
	if typ == UnsignedInt {
		d.format = driver.IndexU32
	}
	// Buffer-resident lists in a native format are bound in place.
	if gpu && !info.expand && typ != UnsignedByte {
		d.native = src[:count*size]
	}
	return c.drawArrays(d)
}

// indexList materializes the index buffer of d from the transient pool.
func (c *Context) indexList(d *arrayDraw) ([]byte, driver.IndexFormat, int, error) {
	if d.indices == nil {
		return c.sequentialIndices(d.vertices, d.info.expand)
	}
	if d.native != nil {
		return d.native, d.format, d.count, nil
	}
	if d.info.expand {
		buf, n, err := c.expandQuadIndices(d.indices, d.format)
		return buf, d.format, n, err
	}
	buf, err := c.indexBuffer(d.count, d.format)
	if err != nil {
		return nil, d.format, 0, err
	}
	for i, v := range d.indices {
		putIndex(buf, d.format, i, v)
	}
	return buf, d.format, d.count, nil
}

func (c *Context) drawArrays(d *arrayDraw) error {
	if c.state.cullsEverything(d.info) {
		c.skip(d.op, "culled")
		return nil
	}
	if !c.frame.inScene {
		return c.failf(d.op, ErrInvalidOperation, "no scene in progress")
	}
	if c.current != 0 {
		return c.drawCustom(d)
	}

	u := &c.units[c.clientUnit]
	if !u.vertex.enabled {
		return c.failf(d.op, ErrInvalidOperation, "vertex array disabled")
	}
	tex := c.boundTexture()
	textured := tex != nil && u.texcoord.enabled
	if !textured {
		tex = nil
	}
	p := c.fixed.variants[selectVariant(textured, u.color.enabled)]

	dc := &drawCall{
		prim:     d.info.native,
		vp:       p.vp,
		fp:       p.fp,
		texture:  tex,
		streams:  make([][]byte, 3),
		uniforms: c.fixedUniforms(p),
	}
	for _, s := range []struct {
		slot  int
		array *clientArray
		comps int
	}{
		{streamPosition, &u.vertex, 3},
		{p.color, &u.color, 4},
		{p.texcoord, &u.texcoord, 2},
	} {
		if s.slot == noStream {
			continue
		}
		data, err := c.fixedStream(d.op, s.array, d.first, d.vertices, s.comps)
		if err != nil {
			return c.streamFailed(d.op, err)
		}
		dc.streams[s.slot] = data
	}

	var err error
	if dc.indices, dc.format, dc.count, err = c.indexList(d); err != nil {
		return c.streamFailed(d.op, err)
	}
	return c.submit(d.op, dc)
}

// streamFailed reports a failed stream assembly. Errors already recorded
// by fail pass through; pool exhaustion is recorded here.
func (c *Context) streamFailed(op string, err error) error {
	if Code(err) == OutOfMemory {
		c.skip(op, "pool exhausted")
		return c.fail(op, err)
	}
	return err
}

// drawCustom draws with the current program from the generic arrays.
func (c *Context) drawCustom(d *arrayDraw) error {
	p := c.programs.Ptr(c.current.handle())
	if p == nil || !p.linked {
		return c.failf(d.op, ErrInvalidOperation, "current program not linked")
	}
	dc := &drawCall{
		prim:     d.info.native,
		vp:       p.vp,
		fp:       p.fp,
		texture:  c.boundTexture(),
		streams:  make([][]byte, p.streams),
		uniforms: c.customUniforms(p, false),
	}
	for i := range p.attrs {
		at := &p.attrs[i]
		if !at.set {
			continue
		}
		a := &c.attribs[i]
		if !a.enabled {
			return c.failf(d.op, ErrInvalidOperation, "attribute %d (%s) disabled", i, at.name)
		}
		if a.size != at.comps || (at.format == driver.AttribF32) != (a.typ == Float) {
			return c.failf(d.op, ErrInvalidOperation, "attribute %d (%s) layout mismatch", i, at.name)
		}
		data, err := c.rawStream(d.op, a, d.first, d.vertices)
		if err != nil {
			return c.streamFailed(d.op, err)
		}
		dc.streams[at.stream] = data
	}
	var err error
	if dc.indices, dc.format, dc.count, err = c.indexList(d); err != nil {
		return c.streamFailed(d.op, err)
	}
	return c.submit(d.op, dc)
}

// DrawObjects draws count indices from the mapped arrays without copying.
// With implicitWVP set, custom programs receive the view-projection in
// their "wvp" uniform; fixed-function programs always do.
func (c *Context) DrawObjects(prim Primitive, count int, implicitWVP bool) error {
	const op = "DrawObjects"
	info, ok := prim.info()
	if !ok || info.expand {
		return c.failf(op, ErrInvalidEnum, "primitive %v", prim)
	}
	if !info.validCount(count) {
		return c.failf(op, ErrInvalidValue, "count %d for %v", count, prim)
	}
	m := &c.mapped
	if len(m.indices) < count*2 {
		return c.failf(op, ErrInvalidOperation, "mapped index list holds %d of %d indices", len(m.indices)/2, count)
	}
	if c.state.cullsEverything(info) {
		c.skip(op, "culled")
		return nil
	}

	dc := &drawCall{
		prim:    info.native,
		format:  driver.IndexU16,
		indices: m.indices[:count*2],
		count:   count,
	}
	if c.current != 0 {
		p := c.programs.Ptr(c.current.handle())
		if p == nil || !p.linked {
			return c.failf(op, ErrInvalidOperation, "current program not linked")
		}
		dc.vp, dc.fp = p.vp, p.fp
		dc.texture = c.boundTexture()
		dc.uniforms = c.customUniforms(p, implicitWVP)
		dc.streams = make([][]byte, p.streams)
		for i := range p.attrs {
			if at := &p.attrs[i]; at.set {
				if m.attribs[i] == nil {
					return c.failf(op, ErrInvalidOperation, "attribute %d (%s) not mapped", i, at.name)
				}
				dc.streams[at.stream] = m.attribs[i]
			}
		}
		return c.submit(op, dc)
	}

	if m.vertex == nil {
		return c.failf(op, ErrInvalidOperation, "no mapped vertex array")
	}
	tex := c.boundTexture()
	textured := tex != nil && m.texcoord != nil
	if !textured {
		tex = nil
	}
	p := c.fixed.variants[selectVariant(textured, m.color != nil)]
	dc.vp, dc.fp, dc.texture = p.vp, p.fp, tex
	dc.uniforms = c.fixedUniforms(p)
	dc.streams = make([][]byte, 3)
	dc.streams[streamPosition] = m.vertex
	if p.color != noStream {
		dc.streams[p.color] = m.color
	}
	if p.texcoord != noStream {
		dc.streams[p.texcoord] = m.texcoord
	}
	return c.submit(op, dc)
}
