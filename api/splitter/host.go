//go:build !wasm

package splitter

// HostFunctions defines the interface splitters import from the host
// under the "env" module. Pointers and lengths refer to the guest's
// linear memory.
type HostFunctions interface {
	// Timer control
	TimerStart()
	TimerSplit()
	TimerReset()
	TimerPauseGameTime()
	TimerResumeGameTime()
	TimerSetGameTime(secs uint64, nanos uint32)
	TimerGetState() uint32
	TimerSetVariable(keyPtr, keyLen, valuePtr, valueLen uint32)

	// Target process access. A zero handle or address means failure.
	ProcessAttach(namePtr, nameLen uint32) uint64
	ProcessDetach(handle uint64)
	ProcessIsOpen(handle uint64) uint32
	ProcessRead(handle, address uint64, bufPtr, bufLen uint32) uint32
	ProcessGetModuleAddress(handle uint64, namePtr, nameLen uint32) uint64
	ProcessGetModuleSize(handle uint64, namePtr, nameLen uint32) uint64

	// Runtime control
	RuntimeSetTickRate(rate float64)
	RuntimePrintMessage(ptr, length uint32)

	// User settings
	UserSettingsAddBool(keyPtr, keyLen, descriptionPtr, descriptionLen, defaultValue uint32) uint32
}

// Timer states returned by timer_get_state.
const (
	TimerNotRunning uint32 = 0
	TimerRunning    uint32 = 1
	TimerPaused     uint32 = 2
	TimerEnded      uint32 = 3
)
