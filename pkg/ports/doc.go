/*
Package ports defines the driven ports (interfaces) of the Lectern engine.

These interfaces decouple the session engine from storage backends, content sources and
the external services a lesson talks to.

# Key Interfaces

  - ContentLoader: loads a course tree in its published or preview variant.
  - Store / Tx: transactional persistence of progress, branches, variables and the block log.
  - Locker: distributed locking for per-user turn serialization across replicas.
  - ModelClient: streaming language model invocation.
  - RiskChecker, CodeService, PaymentService, ProfileStore: collaborators used by input
    handlers, output generators and UI emitters.
*/
package ports
