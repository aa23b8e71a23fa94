// Package inference provides the model backends loaded by the session
// manager. The exec backend drives an external worker process over a
// length-prefixed msgpack protocol on stdin/stdout; the echo backend answers
// in-process and exists for development and tests.
package inference
