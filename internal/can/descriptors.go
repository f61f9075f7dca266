package can

// Descriptors for the three chassis nodes are built once, at package
// init time, into a plain value table rather than via generics or
// template-style metaprogramming — the header bytes they encode are
// known statically, but Go has no compile-time code generation for
// this without a separate generator step, so a table built in init()
// is the idiomatic stand-in.

// ECU/TCU node indices.
const (
	IndexLeft  uint8 = 0 // ECU0
	IndexRight uint8 = 1 // ECU1
	IndexOnly  uint8 = 0 // TCU0
)

// Wire angles and speeds travel as fixed-point integers. TicksPerRadian
// scales radians (rudder position, wheel-encoder deltas); SpeedScale
// scales rad/s (wheel target/current speed).
const (
	TicksPerRadian = 10000.0
	SpeedScale     = 1000.0
)

// ECU descriptors (node type 0x11).
var (
	ECUState           = func(i uint8) Descriptor { return Descriptor{NodeECU, i, MsgState} }
	ECUTargetSpeed     = func(i uint8) Descriptor { return Descriptor{NodeECU, i, MsgTargetSpeed} }
	ECUCurrentSpeed    = func(i uint8) Descriptor { return Descriptor{NodeECU, i, MsgCurrentSpeed} }
	ECUCurrentPosition = func(i uint8) Descriptor { return Descriptor{NodeECU, i, MsgCurrentPosition} }
	ECUClear           = func(i uint8) Descriptor { return Descriptor{NodeECU, i, MsgClear} }
	ECUTimeout         = func(i uint8) Descriptor { return Descriptor{NodeECU, i, MsgTimeout} }
)

// TCU descriptors (node type 0x12).
var (
	TCUTargetPosition     = func(i uint8) Descriptor { return Descriptor{NodeTCU, i, MsgTargetPosition} }
	TCUCurrentPosition    = func(i uint8) Descriptor { return Descriptor{NodeTCU, i, MsgTCUPosition} }
	TCUCurrentSpeed       = func(i uint8) Descriptor { return Descriptor{NodeTCU, i, MsgCurrentSpeed} }
	TCUState              = func(i uint8) Descriptor { return Descriptor{NodeTCU, i, MsgState} }
)

// Broadcast descriptors, used for queries/commands addressed to every
// node of a type at once.
var (
	ECUBroadcastState   = Descriptor{NodeECU, AnyIndex, MsgState}
	ECUBroadcastPosition = Descriptor{NodeECU, AnyIndex, MsgCurrentPosition}
	TCUBroadcastState   = Descriptor{NodeTCU, AnyIndex, MsgState}
)

// descriptorTable enumerates every per-node descriptor this SDK speaks,
// for diagnostics. The broadcast descriptors above are not in it.
var descriptorTable []Descriptor

func init() {
	descriptorTable = []Descriptor{
		ECUState(IndexLeft), ECUState(IndexRight), TCUState(IndexOnly),
		ECUTargetSpeed(IndexLeft), ECUTargetSpeed(IndexRight),
		ECUCurrentPosition(IndexLeft), ECUCurrentPosition(IndexRight),
		ECUCurrentSpeed(IndexLeft), ECUCurrentSpeed(IndexRight),
		ECUClear(IndexLeft), ECUClear(IndexRight),
		ECUTimeout(IndexLeft), ECUTimeout(IndexRight),
		TCUTargetPosition(IndexOnly), TCUCurrentPosition(IndexOnly), TCUCurrentSpeed(IndexOnly),
	}
}

// KnownDescriptors returns the static descriptor table built at init time.
func KnownDescriptors() []Descriptor {
	return descriptorTable
}
