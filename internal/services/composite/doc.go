// Package composite renders the three-persona share graphic through the
// composite endpoint. The enrichment is best effort: results screens work
// without it.
package composite
