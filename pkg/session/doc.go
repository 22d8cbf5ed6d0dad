/*
Package session serializes the turns of each learner.

A Manager hands out one lock per user id. Waiters give up after a short wait with
domain.ErrLockBusy so a second tab or a double click is answered with a busy frame
instead of queueing behind a long model generation. With a ports.Locker configured the
lock is also taken across replicas.
*/
package session
