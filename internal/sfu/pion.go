package sfu

import (
	"errors"
	"io"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"
)

var (
	ErrRoomNotFound = errors.New("sfu: room not found")
	ErrPeerNotFound = errors.New("sfu: peer not found")
)

type enginePeer struct {
	id string
	pc *webrtc.PeerConnection
}

type engineRoom struct {
	id     string
	peers  map[string]*enginePeer
	tracks map[string]*webrtc.TrackLocalStaticRTP // trackID -> локальный fan-out трек
}

// PionEngine — SFU на pion: по PeerConnection на пира, входящие RTP
// раздаются остальным пирам комнаты
type PionEngine struct {
	api *webrtc.API

	mu           sync.Mutex
	rooms        map[string]*engineRoom
	onPeerClosed func(roomID, peerID string)
}

func NewPionEngine() *PionEngine {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		log.Fatalf("SFU codec registration failed: %v", err)
	}
	return &PionEngine{
		api:   webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		rooms: make(map[string]*engineRoom),
	}
}

func (e *PionEngine) OnPeerClosed(fn func(roomID, peerID string)) {
	e.mu.Lock()
	e.onPeerClosed = fn
	e.mu.Unlock()
}

func (e *PionEngine) CreateRoom(roomID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rooms[roomID]; ok {
		return nil
	}
	e.rooms[roomID] = &engineRoom{
		id:     roomID,
		peers:  make(map[string]*enginePeer),
		tracks: make(map[string]*webrtc.TrackLocalStaticRTP),
	}
	return nil
}

func (e *PionEngine) AddPeer(roomID, peerID string) error {
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	e.mu.Lock()
	room, ok := e.rooms[roomID]
	if !ok {
		e.mu.Unlock()
		pc.Close()
		return ErrRoomNotFound
	}
	if old, ok := room.peers[peerID]; ok {
		old.pc.Close()
	}
	peer := &enginePeer{id: peerID, pc: pc}
	room.peers[peerID] = peer

	// Уже существующие fan-out треки отдаём новому пиру
	for _, track := range room.tracks {
		if _, err := pc.AddTrack(track); err != nil {
			log.Printf("SFU: add track to peer %s: %v", peerID, err)
		}
	}
	e.mu.Unlock()

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.fanOutTrack(roomID, peerID, remote)
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			e.mu.Lock()
			fn := e.onPeerClosed
			e.mu.Unlock()
			if fn != nil {
				fn(roomID, peerID)
			}
		}
	})

	return nil
}

// fanOutTrack читает RTP входящего трека и пишет в локальный трек,
// разданный остальным пирам комнаты
func (e *PionEngine) fanOutTrack(roomID, peerID string, remote *webrtc.TrackRemote) {
	local, err := webrtc.NewTrackLocalStaticRTP(remote.Codec().RTPCodecCapability, remote.ID(), peerID)
	if err != nil {
		log.Printf("SFU: create local track: %v", err)
		return
	}

	e.mu.Lock()
	room, ok := e.rooms[roomID]
	if !ok {
		e.mu.Unlock()
		return
	}
	room.tracks[remote.ID()] = local
	for id, peer := range room.peers {
		if id == peerID {
			continue
		}
		if _, err := peer.pc.AddTrack(local); err != nil {
			log.Printf("SFU: add track to peer %s: %v", id, err)
		}
	}
	e.mu.Unlock()

	buf := make([]byte, 1500)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("SFU: track read ended: %v", err)
			}
			break
		}
		if _, err := local.Write(buf[:n]); err != nil && err != io.ErrClosedPipe {
			break
		}
	}

	e.mu.Lock()
	if room, ok := e.rooms[roomID]; ok {
		delete(room.tracks, remote.ID())
	}
	e.mu.Unlock()
}

// HandleOffer завершает SDP-переговоры для пира
func (e *PionEngine) HandleOffer(roomID, peerID, offer string) (string, error) {
	e.mu.Lock()
	room, ok := e.rooms[roomID]
	if !ok {
		e.mu.Unlock()
		return "", ErrRoomNotFound
	}
	peer, ok := room.peers[peerID]
	e.mu.Unlock()
	if !ok {
		return "", ErrPeerNotFound
	}

	if err := peer.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		return "", err
	}

	answer, err := peer.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}

	gathered := webrtc.GatheringCompletePromise(peer.pc)
	if err := peer.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	<-gathered

	return peer.pc.LocalDescription().SDP, nil
}

func (e *PionEngine) RemovePeer(roomID, peerID string) error {
	e.mu.Lock()
	room, ok := e.rooms[roomID]
	if !ok {
		e.mu.Unlock()
		return ErrRoomNotFound
	}
	peer, ok := room.peers[peerID]
	if ok {
		delete(room.peers, peerID)
	}
	e.mu.Unlock()

	if !ok {
		return ErrPeerNotFound
	}
	return peer.pc.Close()
}

func (e *PionEngine) CloseRoom(roomID string) error {
	e.mu.Lock()
	room, ok := e.rooms[roomID]
	if ok {
		delete(e.rooms, roomID)
	}
	e.mu.Unlock()

	if !ok {
		return nil
	}
	for _, peer := range room.peers {
		peer.pc.Close()
	}
	return nil
}
