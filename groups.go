package tabletop

import (
	"fmt"
	"sort"
)

// Group is a named node in the rendering scene-graph. Groups nest other
// groups and layers. Construction and destruction happen only through the
// engine's draw/teardown lifecycle.
type Group interface {
	Name() string
	Node() *Node
	// Draw renders the group's content once textures are loaded. A failure
	// aborts the remaining groups of the current draw.
	Draw(e *Engine) error
	// TearDown releases the group's resources. Called in reverse
	// declaration order during scene teardown.
	TearDown(e *Engine) error
}

// Layer holds the drawable content for one category of scene content,
// always belonging to exactly one group.
type Layer interface {
	Group
	// EmbeddedType is the document type this layer renders (e.g. "Token").
	EmbeddedType() string
	// CollectionName is the document collection this layer renders
	// (e.g. "tokens").
	CollectionName() string
	// Activate and Deactivate toggle whether this layer receives pointer
	// gestures from the dispatcher.
	Activate()
	Deactivate()
	Active() bool
}

// DragDelegate is implemented by layers that handle their own drag
// gestures. The dispatcher delegates drag conclusion to the active layer
// when the gesture is neither a measurement nor a box selection.
type DragDelegate interface {
	DragStart(s *InteractionSession)
	DragMove(s *InteractionSession)
	DragEnd(s *InteractionSession)
	DragCancel(s *InteractionSession)
}

// GroupConfig declares one rendering group. The table of GroupConfigs is
// the sole mechanism for extending the scene-graph shape: each entry names
// its parent ("" for a top-level group) and construction is driven entirely
// by the table, not hard-coded nesting.
type GroupConfig struct {
	Name   string
	Parent string
	New    func(e *Engine) Group
}

// LayerConfig declares one layer inside a group.
type LayerConfig struct {
	Name           string
	EmbeddedType   string
	CollectionName string
	Group          string
	ZIndex         int
	New            func(e *Engine) Layer
}

// --- BaseGroup ---

// BaseGroup is a plain container group. Concrete groups embed it and
// override Draw/TearDown as needed.
type BaseGroup struct {
	name   string
	node   *Node
	layers []Layer
}

// NewBaseGroup creates a container group with the given name.
func NewBaseGroup(name string) *BaseGroup {
	return &BaseGroup{name: name, node: NewContainer(name)}
}

func (g *BaseGroup) Name() string { return g.name }
func (g *BaseGroup) Node() *Node  { return g.node }

// Draw draws each of the group's layers in ZIndex order. The first layer
// failure aborts the rest.
func (g *BaseGroup) Draw(e *Engine) error {
	for _, l := range g.layers {
		if err := l.Draw(e); err != nil {
			return fmt.Errorf("layer %s: %w", l.Name(), err)
		}
	}
	return nil
}

// TearDown tears down the group's layers in reverse order, then disposes
// the group node.
func (g *BaseGroup) TearDown(e *Engine) error {
	var firstErr error
	for i := len(g.layers) - 1; i >= 0; i-- {
		if err := g.layers[i].TearDown(e); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("layer %s: %w", g.layers[i].Name(), err)
		}
	}
	g.layers = nil
	g.node.Dispose()
	return firstErr
}

// Layers returns the group's layers in draw order.
// The returned slice MUST NOT be mutated.
func (g *BaseGroup) Layers() []Layer { return g.layers }

// addLayer attaches a layer's node and records it for drawing. Layers are
// kept sorted by their node ZIndex.
func (g *BaseGroup) addLayer(l Layer) {
	g.node.AddChild(l.Node())
	g.layers = append(g.layers, l)
	sort.SliceStable(g.layers, func(i, j int) bool {
		return g.layers[i].Node().ZIndex < g.layers[j].Node().ZIndex
	})
}

// layerContainer is implemented by groups that track their layers for
// drawing. Groups that don't implement it still get the layer node
// attached to their node.
type layerContainer interface {
	addLayer(l Layer)
}

// --- BaseLayer ---

// BaseLayer is a minimal Layer implementation for embedding in concrete
// layer types.
type BaseLayer struct {
	name           string
	embeddedType   string
	collectionName string
	node           *Node
	active         bool
}

// NewBaseLayer creates a layer with the given identity.
func NewBaseLayer(name, embeddedType, collectionName string) *BaseLayer {
	return &BaseLayer{
		name:           name,
		embeddedType:   embeddedType,
		collectionName: collectionName,
		node:           NewContainer(name),
	}
}

func (l *BaseLayer) Name() string           { return l.name }
func (l *BaseLayer) Node() *Node            { return l.node }
func (l *BaseLayer) EmbeddedType() string   { return l.embeddedType }
func (l *BaseLayer) CollectionName() string { return l.collectionName }
func (l *BaseLayer) Draw(e *Engine) error   { return nil }
func (l *BaseLayer) Activate()              { l.active = true }
func (l *BaseLayer) Deactivate()            { l.active = false }
func (l *BaseLayer) Active() bool           { return l.active }

// TearDown disposes the layer node.
func (l *BaseLayer) TearDown(e *Engine) error {
	l.active = false
	l.node.Dispose()
	return nil
}

// --- Composer ---

// buildGroups recursively instantiates the group table: each config whose
// Parent matches an already-constructed group (or "" for the stage) is
// built, attached to its parent's node, registered on the engine for O(1)
// lookup, and then its own children are built. Declaration order within one
// parent is preserved, which fixes draw order.
func (e *Engine) buildGroups(configs []GroupConfig) error {
	seen := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg.Name == "" {
			return fmt.Errorf("group config with empty name")
		}
		if seen[cfg.Name] {
			return fmt.Errorf("duplicate group %q", cfg.Name)
		}
		seen[cfg.Name] = true
	}

	e.buildChildGroups(configs, "", e.stage)

	if len(e.groupOrder) != len(configs) {
		for _, cfg := range configs {
			if _, ok := e.groups[cfg.Name]; !ok {
				return fmt.Errorf("group %q: parent %q never constructed", cfg.Name, cfg.Parent)
			}
		}
	}
	return nil
}

func (e *Engine) buildChildGroups(configs []GroupConfig, parent string, parentNode *Node) {
	for _, cfg := range configs {
		if cfg.Parent != parent {
			continue
		}
		g := cfg.New(e)
		parentNode.AddChild(g.Node())
		e.groups[cfg.Name] = g
		e.groupOrder = append(e.groupOrder, g)
		e.buildChildGroups(configs, cfg.Name, g.Node())
	}
}

// buildLayers instantiates the layer table into the already-built groups
// and indexes each layer by embedded type and collection name.
func (e *Engine) buildLayers(configs []LayerConfig) error {
	for _, cfg := range configs {
		g, ok := e.groups[cfg.Group]
		if !ok {
			return fmt.Errorf("layer %q: unknown group %q", cfg.Name, cfg.Group)
		}
		l := cfg.New(e)
		l.Node().ZIndex = cfg.ZIndex
		if c, ok := g.(layerContainer); ok {
			c.addLayer(l)
		} else {
			g.Node().AddChild(l.Node())
		}
		if cfg.EmbeddedType != "" {
			e.layersByType[cfg.EmbeddedType] = l
		}
		if cfg.CollectionName != "" {
			e.layersByCollection[cfg.CollectionName] = l
		}
	}
	return nil
}

// --- Default configuration ---

// DefaultGroups is the standard scene-graph shape: an environment group
// holding the primary (composited) and effects groups, plus a screen-space
// interface group.
func DefaultGroups() []GroupConfig {
	return []GroupConfig{
		{Name: "environment", Parent: "", New: func(e *Engine) Group { return NewBaseGroup("environment") }},
		{Name: "primary", Parent: "environment", New: func(e *Engine) Group { return NewPrimaryGroup() }},
		{Name: "effects", Parent: "environment", New: func(e *Engine) Group { return NewBaseGroup("effects") }},
		{Name: "interface", Parent: "", New: func(e *Engine) Group { return NewBaseGroup("interface") }},
	}
}

// --- PrimaryGroup ---

// PrimaryGroup composites its layers into a single backing texture once per
// frame (scheduler bucket two). Downstream effects sample the composite
// instead of re-traversing the layer subtree.
type PrimaryGroup struct {
	BaseGroup
	rt *RenderTexture
}

// NewPrimaryGroup creates the primary composited group. The composite
// texture is sized lazily on Draw, once scene dimensions exist.
func NewPrimaryGroup() *PrimaryGroup {
	return &PrimaryGroup{BaseGroup: *NewBaseGroup("primary")}
}

// Draw sizes the composite texture to the scene rectangle and draws the
// group's layers.
func (g *PrimaryGroup) Draw(e *Engine) error {
	w := int(e.Dimensions().Rect.Width)
	h := int(e.Dimensions().Rect.Height)
	if w < 1 || h < 1 {
		return fmt.Errorf("primary group: degenerate scene rect %dx%d", w, h)
	}
	if g.rt == nil {
		g.rt = NewRenderTexture(w, h)
	} else if g.rt.Width() != w || g.rt.Height() != h {
		g.rt.Resize(w, h)
	}
	return g.BaseGroup.Draw(e)
}

// Composite renders every layer's canvas into the backing texture. Called
// once per frame by the scheduler, between the two render-flag buckets.
func (g *PrimaryGroup) Composite() {
	if g.rt == nil {
		return
	}
	g.rt.Clear()
	for _, l := range g.layers {
		g.rt.compositeNode(l.Node())
	}
}

// Texture returns the backing composite texture, or nil before first draw.
func (g *PrimaryGroup) Texture() *RenderTexture { return g.rt }

// TearDown releases the composite texture after the layers are torn down.
func (g *PrimaryGroup) TearDown(e *Engine) error {
	err := g.BaseGroup.TearDown(e)
	if g.rt != nil {
		g.rt.Dispose()
		g.rt = nil
	}
	return err
}
