// Package proc reads host and per-process resource counters from procfs
// on Linux. It has no dependencies beyond the standard library and is the
// sampling layer under pkg/monitor.
//
// Overview
//
//   - FS: path-addressable view of a procfs tree (default /proc). Every
//     reader goes through it so tests can point at a fake tree.
//
//   - HostReader: host-wide CPU and memory.
//     CPU comes from the aggregate "cpu" line of /proc/stat; memory is
//     MemTotal - MemFree from /proc/meminfo, in kB.
//
//   - ProcessReader: one tracked process.
//     CPU is the utime+stime delta of /proc/<pid>/stat over wall time,
//     resident memory is VmRSS from /proc/<pid>/status, and the identity
//     token is starttime from /proc/<pid>/stat.
//
// # Host CPU modes
//
// CPUSinceBoot (default) divides the idle counter by the total counter as
// accumulated since boot. The figure trends toward a stable average and
// reacts slowly to spikes; it is not comparable to the per-process figure.
// CPUWindow takes the same ratio over the difference of two readings.
//
// # Identity
//
// PIDs are recycled. Identity pairs a PID with its starttime so a monitor
// can tell "the process exited" from "another process now owns this PID".
// Metrics read after a reuse describe the wrong process and must not be
// reported.
//
// # Errors
//
// Read failures are transient by design: HostReader and ProcessReader turn
// them into zero values. Only StartTimeTicks/Identity surface an error,
// because without an identity token there is nothing to monitor.
package proc
