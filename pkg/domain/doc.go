/*
Package domain contains the core models of the Lectern lesson engine.

It defines the read-only content tree a learner walks through, the per-user state the
engine mutates while doing so, and the frames it streams back to the client. This package
is kept pure and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - OutlineItem / Tree: chapters and lessons, stored as parent id + sibling order.
  - Block: an ordered content/interaction unit inside an outline item.
  - ProgressRecord: the per-user status and position inside one outline item.
  - BranchAssociation: a redirect edge from one progress record to another.
  - LogEntry: the append-only record of everything shown to (or said by) the user.
  - Frame: one unit of the streaming wire protocol.
*/
package domain
