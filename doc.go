/*
Package silo provides an archetype-based Entity-Component-System (ECS)
core for games and simulations.

Silo groups entities that share the same component set into an
Archetype: a columnar table of densely packed component values plus
the entity IDs that own each row. Adding or removing a component moves
an entity's row to a different archetype; queries filter archetypes by
component set and hand back typed pointers into the live columns.

Core Concepts:

  - Entity: a numeric handle for a row across one archetype's columns.
  - Component: a typed value attached to an entity, stored column-wise.
  - Archetype: the set of entities sharing an exact component set.
  - Registry: the owning container — entities, archetypes, resources,
    the pipeline, and the buffered-update queue.
  - Pipeline: an ordered sequence of named stages, each running a list
    of systems against the Registry.

Basic Usage:

	reg := silo.NewRegistry(silo.RegistryConfig{DestroyEmptyArchetypes: true})

	position := silo.DefineComponent[Position]()
	velocity := silo.DefineComponent[Velocity]()

	e, _ := silo.Spawn(reg,
		silo.With(position, Position{X: 10, Y: 20}),
		silo.With(velocity, Velocity{X: 1, Y: 2}),
	)

	cur, _ := reg.Query(position.ID(), velocity.ID())
	for cur.Next() {
		pos := position.GetFromCursor(cur)
		vel := velocity.GetFromCursor(cur)
		pos.X += vel.X
		pos.Y += vel.Y
	}

Silo is the storage and scheduling core; rendering, transport, and
persistence are explicitly out of scope.
*/
package silo
