package olcb

// MTI is the Message Type Indicator, the 12-bit code classifying a logical
// message. A handful of bits carry structure: bit 3 marks a message as
// addressed to a specific node, bit 2 marks a payload beginning with an
// event id, and codes at 0x1000 and above belong to the datagram/stream
// transports which do not travel through the generic write path.
type MTI uint16

const (
	MTIInitializationComplete      MTI = 0x0100
	MTIVerifiedNodeID              MTI = 0x0170
	MTIVerifyNodeIDAddressed       MTI = 0x0488
	MTIVerifyNodeIDGlobal          MTI = 0x0490
	MTIOptionalInteractionRejected MTI = 0x0068
	MTIProtocolSupportInquiry      MTI = 0x0828
	MTIProtocolSupportReply        MTI = 0x0668
	MTIIdentifyConsumer            MTI = 0x08F4
	MTIIdentifyProducer            MTI = 0x0914
	MTIIdentifyEventsAddressed     MTI = 0x0968
	MTIIdentifyEventsGlobal        MTI = 0x0970
	MTIConsumerIdentified          MTI = 0x04C7
	MTIProducerIdentified          MTI = 0x0547
	MTIEventReport                 MTI = 0x05B4

	MTIDatagram              MTI = 0x1C48
	MTIDatagramOK            MTI = 0x0A28
	MTIDatagramRejected      MTI = 0x0A48
	MTIStreamInitiateRequest MTI = 0x0CC8
	MTIStreamInitiateReply   MTI = 0x0868
	MTIStreamData            MTI = 0x1F88
	MTIStreamProceed         MTI = 0x0888
	MTIStreamComplete        MTI = 0x08A8
)

const (
	mtiAddressedBit = 0x0008
	mtiEventBit     = 0x0004
	mtiSpecialBit   = 0x1000
)

// Addressed reports whether messages of this type carry a destination.
func (m MTI) Addressed() bool {
	return m&mtiAddressedBit != 0
}

// HasEventID reports whether the payload starts with an 8-byte event id.
func (m MTI) HasEventID() bool {
	return m&mtiEventBit != 0
}

// Special reports whether the code belongs to the datagram or stream
// transport. Special messages never go through the generic write or
// fragmentation path; they have their own CAN frame types.
func (m MTI) Special() bool {
	if m&mtiSpecialBit != 0 {
		return true
	}
	switch m {
	case MTIStreamInitiateRequest, MTIStreamInitiateReply, MTIStreamProceed, MTIStreamComplete:
		return true
	}
	return false
}

// CanEncode reports whether the code fits the 12-bit field of a global or
// addressed MTI frame.
func (m MTI) CanEncode() bool {
	return !m.Special() && m <= 0xFFF
}
