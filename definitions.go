/*
package mqtt implements a minimal MQTT v5 client session for memory constrained
publishers along with the low level encoding and decoding primitives it is built on.

All packet encoding happens inside user provided buffers: a Session owns one write
buffer and one receive buffer for its entire life and never grows them.

If you are new to MQTT start by reading definitions.go.
*/
package mqtt

const (
	defaultProtocolLevel    = 5
	defaultProtocol         = "MQTT"
	defaultKeepAlive        = 60 // seconds
	maxRemainingLengthSize  = 4
	maxRemainingLengthValue = 268_435_455
)

// Reserved flags for PUBREL, SUBSCRIBE and UNSUBSCRIBE packet types.
const flagsPubrelSubUnsub PacketFlags = 0b10

// PacketType represents the 4 MSB bits in the first byte in an MQTT fixed header.
// takes on values 1..15. PacketType and PacketFlags are present in all MQTT packets.
type PacketType byte

const (
	// 0 Forbidden/Reserved
	_ PacketType = iota
	// A CONNECT packet is sent from Client to Server, it is a Client request to connect to a Server.
	// After a network connection is established by a client to a server at the transport layer, the first
	// packet sent from the client to the server must be a Connect packet.
	// A Client can only send the CONNECT Packet once over a Network Connection.
	// In MQTT v5 the variable header carries a property block after the keepalive. See [VariablesConnect].
	PacketConnect
	// The CONNACK Packet is the packet sent by the Server in response to a CONNECT Packet received from a Client.
	// The first packet sent from the Server to the Client MUST be a CONNACK Packet.
	// The variable header contains the acknowledge flags, a reason code and a property block. See [VariablesConnack].
	PacketConnack
	// A PUBLISH Control Packet is sent from a Client to a Server or from Server to a Client to transport an Application Message.
	// Its variable header contains a MQTT encoded string for the topic name, a packet identifier for QoS>0
	// and a property block. The length of the Application Message can be calculated by subtracting the
	// length of the variable header from the Remaining Length field that is in the Fixed Header.
	PacketPublish
	// A PUBACK Packet is the response to a PUBLISH Packet with QoS level 1.
	PacketPuback
	// A PUBREC Packet is the response to a PUBLISH Packet with QoS 2. It is the second packet of the QoS 2 protocol exchange.
	PacketPubrec
	// A PUBREL Packet is the response to a PUBREC Packet. It is the third packet of the QoS 2 protocol exchange.
	PacketPubrel
	// The PUBCOMP Packet is the response to a PUBREL Packet. It is the fourth and final packet of the QoS 2 protocol exchange.
	PacketPubcomp
	// The SUBSCRIBE Packet is sent from the Client to the Server to create one or more Subscriptions.
	PacketSubscribe
	// A SUBACK Packet is sent by the Server to the Client to confirm receipt and processing of a SUBSCRIBE Packet.
	PacketSuback
	// An UNSUBSCRIBE Packet is sent by the Client to the Server, to unsubscribe from topics.
	PacketUnsubscribe
	// The UNSUBACK Packet is sent by the Server to the Client to confirm receipt of an UNSUBSCRIBE Packet.
	PacketUnsuback
	// The PINGREQ Packet is sent from a Client to the Server to indicate it is alive.
	// No payload or variable header.
	PacketPingreq
	// A PINGRESP Packet is sent by the Server to the Client in response to a PINGREQ Packet.
	// No payload or variable header.
	PacketPingresp
	// In MQTT v5 the DISCONNECT Packet may be sent by either side. When sent by the server
	// it carries a reason code explaining why the Network Connection is being closed.
	PacketDisconnect
	// The AUTH packet is sent from Client to Server or Server to Client as part of an
	// extended authentication exchange. New in MQTT v5.
	PacketAuth
)

// QoSLevel represents the Quality of Service specified by the client.
// The server can choose to provide or reject requested QoS. The values
// of QoS range from 0 to 2, each representing a differnt methodology for
// message delivery guarantees.
type QoSLevel uint8

// QoS indicates the level of assurance for packet delivery.
const (
	// QoS0 at most once delivery. Arrives either once or not at all. Depends on capabilities of underlying network.
	QoS0 QoSLevel = iota
	// QoS1 at least once delivery. Ensures message arrives at receiver at least once.
	QoS1
	// QoS2 Exactly once delivery. Highest quality service. For use when neither loss nor duplication of messages are acceptable.
	// There is an increased overhead associated with this quality of service.
	QoS2
	// Reserved, must not be used.
	reservedQoS3
	// QoSSubfail marks a failure in SUBACK. This value cannot be encoded into a header
	// and is only returned upon an unsuccesful subscribe to a topic in an SUBACK packet.
	QoSSubfail QoSLevel = 0x80
)

// ReasonCode is the MQTT v5 single byte status carried by CONNACK, DISCONNECT and
// acknowledgement packets. Values below 0x80 indicate success, values of 0x80
// or greater indicate failure.
type ReasonCode uint8

const (
	ReasonSuccess                     ReasonCode = 0x00
	ReasonDisconnectWithWill          ReasonCode = 0x04
	ReasonUnspecifiedError            ReasonCode = 0x80
	ReasonMalformedPacket             ReasonCode = 0x81
	ReasonProtocolError               ReasonCode = 0x82
	ReasonImplementationSpecificError ReasonCode = 0x83
	ReasonUnsupportedProtocolVersion  ReasonCode = 0x84
	ReasonClientIdentifierNotValid    ReasonCode = 0x85
	ReasonBadUserNameOrPassword       ReasonCode = 0x86
	ReasonNotAuthorized               ReasonCode = 0x87
	ReasonServerUnavailable           ReasonCode = 0x88
	ReasonServerBusy                  ReasonCode = 0x89
	ReasonBanned                      ReasonCode = 0x8A
	ReasonServerShuttingDown          ReasonCode = 0x8B
	ReasonBadAuthenticationMethod     ReasonCode = 0x8C
	ReasonKeepAliveTimeout            ReasonCode = 0x8D
	ReasonSessionTakenOver            ReasonCode = 0x8E
	ReasonTopicFilterInvalid          ReasonCode = 0x8F
	ReasonTopicNameInvalid            ReasonCode = 0x90
	ReasonReceiveMaximumExceeded      ReasonCode = 0x93
	ReasonTopicAliasInvalid           ReasonCode = 0x94
	ReasonPacketTooLarge              ReasonCode = 0x95
	ReasonMessageRateTooHigh          ReasonCode = 0x96
	ReasonQuotaExceeded               ReasonCode = 0x97
	ReasonAdministrativeAction        ReasonCode = 0x98
	ReasonPayloadFormatInvalid        ReasonCode = 0x99
	ReasonRetainNotSupported          ReasonCode = 0x9A
	ReasonQoSNotSupported             ReasonCode = 0x9B
	ReasonUseAnotherServer            ReasonCode = 0x9C
	ReasonServerMoved                 ReasonCode = 0x9D
	ReasonSharedSubsNotSupported      ReasonCode = 0x9E
	ReasonConnectionRateExceeded      ReasonCode = 0x9F
	ReasonMaximumConnectTime          ReasonCode = 0xA0
	ReasonSubIDsNotSupported          ReasonCode = 0xA1
	ReasonWildcardSubsNotSupported    ReasonCode = 0xA2
)

// propertyID identifies an MQTT v5 property inside a property block.
type propertyID byte

const (
	propPayloadFormat        propertyID = 0x01
	propMessageExpiry        propertyID = 0x02
	propContentType          propertyID = 0x03
	propResponseTopic        propertyID = 0x08
	propCorrelationData      propertyID = 0x09
	propSubscriptionID       propertyID = 0x0B
	propSessionExpiry        propertyID = 0x11
	propAssignedClientID     propertyID = 0x12
	propServerKeepAlive      propertyID = 0x13
	propAuthMethod           propertyID = 0x15
	propAuthData             propertyID = 0x16
	propRequestProblemInfo   propertyID = 0x17
	propWillDelay            propertyID = 0x18
	propRequestResponseInfo  propertyID = 0x19
	propResponseInfo         propertyID = 0x1A
	propServerReference      propertyID = 0x1C
	propReasonString         propertyID = 0x1F
	propReceiveMaximum       propertyID = 0x21
	propTopicAliasMaximum    propertyID = 0x22
	propTopicAlias           propertyID = 0x23
	propMaximumQoS           propertyID = 0x24
	propRetainAvailable      propertyID = 0x25
	propUserProperty         propertyID = 0x26
	propMaximumPacketSize    propertyID = 0x27
	propWildcardSubAvailable propertyID = 0x28
	propSubIDAvailable       propertyID = 0x29
	propSharedSubAvailable   propertyID = 0x2A
)
