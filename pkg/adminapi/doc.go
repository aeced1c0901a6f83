/*
Package adminapi exposes a read-only gRPC introspection surface over a
running core: tick cadence, ingress stripe depths, per-entity
transaction queue bounds, and object pool occupancy.

There is no .proto/protoc step in this module, so request and response
payloads are google.golang.org/protobuf/types/known/structpb.Struct
values rather than generated message types — structpb is itself a
stable protobuf well-known type, so the service still rides on the
real protobuf wire format and the real grpc-go server, it just builds
its messages from a map instead of a compiled schema.

The admin surface is optional: Core does not import this package and
runs unchanged when no Server is registered, matching the optionality
of the database gateway. A Server must be built with NewServer over a
non-nil Source; a nil *Server is not usable.
*/
package adminapi
