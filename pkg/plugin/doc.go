/*
Package plugin defines the core's optional extension points as four
capability interfaces and a Registry that composes them in registration
order. Capability detection happens once, in Use, via a type assertion
against each interface — a plugin implementing none of them costs one
failed assertion per interface at registration. The per-tick Run*
calls do no type assertions, but they walk every registered plugin
and skip, with a nil check, those lacking the hook being run.

scheduledtick.go, usertick.go, and tracing.go are default plugins built
on top of the same interfaces: they carry no special status with the
Registry.
*/
package plugin
