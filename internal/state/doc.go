// Package state owns the ResultMap: the last known load outcome per resource
// identifier. Mutations go through Apply and Reset only, one at a time, and
// observers receive copies of the map either on demand (Snapshot, Lookup) or
// pushed after every mutation (Subscribe).
package state
